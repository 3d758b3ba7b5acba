package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

// RentConfig is the storage price of the local ledger.
type RentConfig struct {
	LamportsPerByteYear uint64 `toml:"lamports_per_byte_year"`
	ExemptionYears      uint64 `toml:"exemption_years"`
}

// Config is the content of the client's toml file.
type Config struct {
	DB      string     `toml:"db"`
	Private string     `toml:"private"`
	Rent    RentConfig `toml:"rent"`
}

// NewConfig returns a configuration with a fresh key pair.
func NewConfig(db string) (*Config, error) {
	kp := key.NewKeyPair(cothority.Suite)
	private, err := utils.ScalarToHex(kp.Private)
	if err != nil {
		return nil, err
	}
	return &Config{
		DB:      db,
		Private: private,
		Rent: RentConfig{
			LamportsPerByteYear: state.DefaultRent.LamportsPerByteYear,
			ExemptionYears:      state.DefaultRent.ExemptionYears,
		},
	}, nil
}

// LoadConfig reads the toml file at path.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, xerrors.Errorf("couldn't read config %s: %v", path, err)
	}
	if cfg.DB == "" {
		return nil, xerrors.Errorf("config %s has no db", path)
	}
	return cfg, nil
}

// Save writes the configuration to path, refusing to overwrite.
func (cfg *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return xerrors.Errorf("couldn't create config: %v", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// KeyPair returns the key of the configuration.
func (cfg *Config) KeyPair() (*key.Pair, error) {
	return utils.KeyPairFromHex(cfg.Private)
}

// Address returns the ledger address of the key.
func (cfg *Config) Address() (address.Address, error) {
	kp, err := cfg.KeyPair()
	if err != nil {
		return address.Zero, err
	}
	return ledger.KeyAddress(kp)
}

// LedgerRent is the rent policy of the configuration.
func (cfg *Config) LedgerRent() state.Rent {
	return state.Rent{
		LamportsPerByteYear: cfg.Rent.LamportsPerByteYear,
		ExemptionYears:      cfg.Rent.ExemptionYears,
	}
}
