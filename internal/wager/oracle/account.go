package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
)

var (
	ErrUnknownAccount = errors.New("unknown oracle account layout")
	ErrShortAccount   = errors.New("oracle account data too short")
)

var (
	randomnessV2Disc = ledger.AccountDiscriminator("RandomnessV2")
	randomnessV1Disc = ledger.AccountDiscriminator("Randomness")
	networkStateDisc = ledger.AccountDiscriminator("NetworkState")
)

// Randomness é o registro de randomness decodificado
type Randomness struct {
	Version   int
	Client    ledger.PublicKey // só V2
	Seed      [32]byte
	Value     [64]byte
	Fulfilled bool
}

// DecodeRandomness entende RandomnessV2 (enum Pending/Fulfilled) e o formato legado
func DecodeRandomness(data []byte) (*Randomness, error) {
	if len(data) < 8 {
		return nil, ErrShortAccount
	}
	disc, body := data[:8], data[8:]
	switch {
	case bytes.Equal(disc, randomnessV2Disc):
		// enum tag(1) | client(32) | seed(32) | [randomness(64) se Fulfilled]
		if len(body) < 1+32+32 {
			return nil, ErrShortAccount
		}
		r := &Randomness{Version: 2}
		copy(r.Client[:], body[1:33])
		copy(r.Seed[:], body[33:65])
		switch body[0] {
		case 0:
			return r, nil
		case 1:
			if len(body) < 1+32+32+64 {
				return nil, ErrShortAccount
			}
			copy(r.Value[:], body[65:129])
			r.Fulfilled = true
			return r, nil
		default:
			return nil, fmt.Errorf("%w: request variant %d", ErrUnknownAccount, body[0])
		}
	case bytes.Equal(disc, randomnessV1Disc):
		// seed(32) | randomness(64) | respostas... ; preenchido quando != 0
		if len(body) < 32+64 {
			return nil, ErrShortAccount
		}
		r := &Randomness{Version: 1}
		copy(r.Seed[:], body[:32])
		copy(r.Value[:], body[32:96])
		r.Fulfilled = r.Value != [64]byte{}
		return r, nil
	}
	return nil, ErrUnknownAccount
}

// NetworkState traz o que a requisição de randomness precisa: o treasury do oracle
type NetworkState struct {
	Authority ledger.PublicKey
	Treasury  ledger.PublicKey
}

func DecodeNetworkState(data []byte) (NetworkState, error) {
	if len(data) < 8+32+32 {
		return NetworkState{}, ErrShortAccount
	}
	if !bytes.Equal(data[:8], networkStateDisc) {
		return NetworkState{}, fmt.Errorf("%w: not a network state", ErrUnknownAccount)
	}
	var ns NetworkState
	copy(ns.Authority[:], data[8:40])
	copy(ns.Treasury[:], data[40:72])
	return ns, nil
}

// AccountSource é a parte do ledger client usada para ler contas
type AccountSource interface {
	GetAccountInfo(ctx context.Context, pk ledger.PublicKey, commitment ledger.Commitment) (*ledger.Account, error)
}

// FetchNetworkState lê e decodifica a conta de configuração do oracle
func FetchNetworkState(ctx context.Context, src AccountSource, ref ledger.PublicKey) (NetworkState, error) {
	acc, err := src.GetAccountInfo(ctx, ref, ledger.CommitmentConfirmed)
	if err != nil {
		return NetworkState{}, fmt.Errorf("fetch network state: %w", err)
	}
	if acc == nil {
		return NetworkState{}, fmt.Errorf("network state %s not found", ref)
	}
	return DecodeNetworkState(acc.Data)
}
