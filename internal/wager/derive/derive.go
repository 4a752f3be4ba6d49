package derive

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Seeds fixos do oracle e do programa de jogo
const (
	RandomnessSeed   = "orao-vrf-randomness-request"
	NetworkStateSeed = "orao-vrf-network-configuration"
	WagerSeed        = "bet"
)

// Deriver mapeia a seed efêmera para as contas da tentativa. Sem I/O.
type Deriver struct {
	VRFProgram  ledger.PublicKey
	GameProgram ledger.PublicKey
}

func New(vrfProgram, gameProgram ledger.PublicKey) Deriver {
	return Deriver{VRFProgram: vrfProgram, GameProgram: gameProgram}
}

// Derive devolve randomnessRef e wagerAccountRef para a seed
func (d Deriver) Derive(seed ledger.PublicKey) (wager.Addresses, error) {
	if seed.IsZero() {
		return wager.Addresses{}, fmt.Errorf("%w: zero seed", wager.ErrInvalidSeed)
	}
	randomness, _, err := ledger.FindProgramAddress([][]byte{[]byte(RandomnessSeed), seed[:]}, d.VRFProgram)
	if err != nil {
		return wager.Addresses{}, fmt.Errorf("%w: randomness address: %v", wager.ErrInvalidSeed, err)
	}
	bet, _, err := ledger.FindProgramAddress([][]byte{[]byte(WagerSeed), randomness[:]}, d.GameProgram)
	if err != nil {
		return wager.Addresses{}, fmt.Errorf("%w: wager address: %v", wager.ErrInvalidSeed, err)
	}
	return wager.Addresses{RandomnessRef: randomness, WagerAccountRef: bet}, nil
}

// StaticAccounts são as contas do jogo, iguais para todas as tentativas
type StaticAccounts struct {
	Vault        ledger.PublicKey
	Treasury     ledger.PublicKey
	Config       ledger.PublicKey
	NetworkState ledger.PublicKey
}

// Static calcula vault, treasury e config do programa de jogo e o network state do oracle
func (d Deriver) Static(vaultSeed, treasurySeed, configSeed string) (StaticAccounts, error) {
	var out StaticAccounts
	targets := []struct {
		seed    string
		program ledger.PublicKey
		dst     *ledger.PublicKey
	}{
		{vaultSeed, d.GameProgram, &out.Vault},
		{treasurySeed, d.GameProgram, &out.Treasury},
		{configSeed, d.GameProgram, &out.Config},
		{NetworkStateSeed, d.VRFProgram, &out.NetworkState},
	}
	for _, t := range targets {
		if t.seed == "" {
			return StaticAccounts{}, fmt.Errorf("%w: empty account seed", wager.ErrValidation)
		}
		pk, _, err := ledger.FindProgramAddress([][]byte{[]byte(t.seed)}, t.program)
		if err != nil {
			return StaticAccounts{}, fmt.Errorf("derive %q: %w", t.seed, err)
		}
		*t.dst = pk
	}
	return out, nil
}

// ParseSeed aceita base58 (chave pública) ou base64 de 32 bytes
func ParseSeed(s string) (ledger.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ledger.PublicKey{}, fmt.Errorf("%w: empty", wager.ErrInvalidSeed)
	}
	if raw, err := base58.Decode(s); err == nil && len(raw) == 32 {
		return ledger.PublicKeyFromBytes(raw)
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == 32 {
		return ledger.PublicKeyFromBytes(raw)
	}
	return ledger.PublicKey{}, fmt.Errorf("%w: %q is neither base58 nor base64 of 32 bytes", wager.ErrInvalidSeed, s)
}

// NewSeed gera a identidade efêmera de uma tentativa
func NewSeed() (ledger.PublicKey, error) {
	kp, err := ledger.GenerateKeypair()
	if err != nil {
		return ledger.PublicKey{}, fmt.Errorf("generate seed: %w", err)
	}
	return kp.PublicKey(), nil
}
