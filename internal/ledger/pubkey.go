package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength é o tamanho de um endereço no ledger (ed25519)
const PublicKeyLength = 32

var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey representa um endereço do ledger (conta, programa ou PDA)
type PublicKey [PublicKeyLength]byte

// Hash é o blockhash usado como contexto de confirmação das transações
type Hash [32]byte

// SystemProgramID é o programa nativo usado na criação de contas
var SystemProgramID = PublicKey{}

// ParsePublicKey decodifica um endereço em base58
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidPublicKey, PublicKeyLength, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey é usado apenas para constantes conhecidas
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copia 32 bytes para um PublicKey
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidPublicKey, PublicKeyLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p PublicKey) String() string { return base58.Encode(p[:]) }

func (p PublicKey) Bytes() []byte { return p[:] }

func (p PublicKey) IsZero() bool { return p == PublicKey{} }

func (p PublicKey) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pk, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// ParseHash decodifica um blockhash em base58
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("invalid blockhash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid blockhash: want %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return base58.Encode(h[:]) }
