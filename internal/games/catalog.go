package games

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	ErrUnknownGame  = errors.New("unknown game")
	ErrGameDisabled = errors.New("game disabled")
)

// Profile são os parâmetros cosméticos de um jogo; o fluxo da aposta é o mesmo para todos
type Profile struct {
	Name         string `yaml:"name"`
	ProgramID    string `yaml:"program_id"`
	VaultSeed    string `yaml:"vault_seed"`
	TreasurySeed string `yaml:"treasury_seed"`
	ConfigSeed   string `yaml:"config_seed"`
	OutcomeTag   string `yaml:"outcome_tag"`
	RefundTag    string `yaml:"refund_tag"`
	SignerURL    string `yaml:"signer_url"`
	MinStake     string `yaml:"min_stake"` // em SOL, vazio = sem limite
	MaxStake     string `yaml:"max_stake"`
	Enabled      bool   `yaml:"enabled"`
}

// Program devolve o program id já parseado
func (p Profile) Program() (ledger.PublicKey, error) {
	if p.ProgramID == "" {
		return ledger.PublicKey{}, fmt.Errorf("game %s has no program id", p.Name)
	}
	return ledger.ParsePublicKey(p.ProgramID)
}

// CheckStake aplica min/max do catálogo
func (p Profile) CheckStake(lamports uint64) error {
	if lamports == 0 {
		return wager.Validation("stake must be positive")
	}
	if p.MinStake != "" {
		lo, err := ParseSOL(p.MinStake)
		if err != nil {
			return err
		}
		if lamports < lo {
			return wager.Validation("stake %s below minimum %s", FormatLamports(lamports), p.MinStake)
		}
	}
	if p.MaxStake != "" {
		hi, err := ParseSOL(p.MaxStake)
		if err != nil {
			return err
		}
		if lamports > hi {
			return wager.Validation("stake %s above maximum %s", FormatLamports(lamports), p.MaxStake)
		}
	}
	return nil
}

type Catalog struct {
	Games []Profile `yaml:"games"`
}

// LoadCatalog lê o YAML de path; path vazio usa o catálogo embutido
func LoadCatalog(path string) (Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		raw = b
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	seen := map[string]bool{}
	for _, p := range c.Games {
		if p.Name == "" {
			return Catalog{}, errors.New("catalog: game without name")
		}
		if seen[p.Name] {
			return Catalog{}, fmt.Errorf("catalog: duplicated game %s", p.Name)
		}
		seen[p.Name] = true
		if !p.Enabled {
			continue
		}
		if _, err := p.Program(); err != nil {
			return Catalog{}, fmt.Errorf("catalog: %s: %w", p.Name, err)
		}
		if p.OutcomeTag == "" || p.RefundTag == "" {
			return Catalog{}, fmt.Errorf("catalog: %s: outcome and refund tags are required", p.Name)
		}
	}
	return c, nil
}

// Profile busca o perfil pelo nome, sem olhar Enabled
func (c Catalog) Profile(name string) (Profile, error) {
	for _, p := range c.Games {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnknownGame, name)
}

// Game devolve a variante habilitada
func (c Catalog) Game(name string) (Game, error) {
	p, err := c.Profile(name)
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrGameDisabled, name)
	}
	return New(p)
}

// Enabled lista os jogos habilitados
func (c Catalog) Enabled() []Game {
	var out []Game
	for _, p := range c.Games {
		if !p.Enabled {
			continue
		}
		if g, err := New(p); err == nil {
			out = append(out, g)
		}
	}
	return out
}
