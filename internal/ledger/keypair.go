package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
)

// Signer é a capacidade de assinar mensagens com uma chave do ledger.
// O operator-signer recebe um Signer por injeção, nunca uma chave global.
type Signer interface {
	PublicKey() PublicKey
	SignMessage(msg []byte) ([]byte, error)
}

// Wallet é a carteira do jogador: uma única capacidade obrigatória, assinar a transação
type Wallet interface {
	PublicKey() PublicKey
	SignTransaction(ctx context.Context, tx *Transaction) error
}

// Keypair implementa Signer e Wallet a partir de uma chave ed25519 local
type Keypair struct {
	priv ed25519.PrivateKey
	pub  PublicKey
}

func NewKeypair(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: want %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	var pub PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{priv: priv, pub: pub}, nil
}

// GenerateKeypair cria uma chave nova (usada para seeds efêmeras e testes)
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeypair(priv)
}

// LoadKeypairFile lê o formato JSON da CLI do ledger: array com 64 bytes
func LoadKeypairFile(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var secret []byte
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("decode keypair: %w", err)
	}
	secret = make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("decode keypair: byte %d out of range", i)
		}
		secret[i] = byte(v)
	}
	return NewKeypair(ed25519.PrivateKey(secret))
}

func (k *Keypair) PublicKey() PublicKey { return k.pub }

func (k *Keypair) SignMessage(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, msg), nil
}

func (k *Keypair) SignTransaction(_ context.Context, tx *Transaction) error {
	return tx.Sign(k)
}
