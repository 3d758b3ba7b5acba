package main

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/lottery"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/randomness"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/token"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

const slotKey = "slot"

// env is a local ledger opened from a configuration.
type env struct {
	cfg    *Config
	kp     *key.Pair
	self   address.Address
	store  *state.BoltStore
	clock  *ledger.ManualClock
	ledger *ledger.Ledger
}

func openEnv(cfg *Config) (*env, error) {
	kp, err := cfg.KeyPair()
	if err != nil {
		return nil, err
	}
	self, err := ledger.KeyAddress(kp)
	if err != nil {
		return nil, err
	}
	store, err := state.OpenBoltStore(cfg.DB)
	if err != nil {
		return nil, err
	}
	slot, err := store.Meta(slotKey)
	if err != nil {
		store.Close()
		return nil, xerrors.Errorf("couldn't read slot: %v", err)
	}
	clock := ledger.NewManualClock(slot)
	tokens := token.New()
	registry := metadata.New(tokens)
	rnd := randomness.New()
	l := ledger.New(store, clock, cfg.LedgerRent(),
		lottery.New(tokens, registry, rnd), tokens, registry, rnd)
	return &env{cfg: cfg, kp: kp, self: self, store: store, clock: clock, ledger: l}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// send signs and executes one transaction with the configured key.
func (e *env) send(insts ...ledger.Instruction) error {
	tx := ledger.NewTransaction(insts...)
	if err := tx.Sign(e.kp); err != nil {
		return err
	}
	if err := e.ledger.Execute(tx); err != nil {
		return err
	}
	log.Lvlf1("slot %d: executed %d instruction(s)", e.clock.Now().Slot, len(insts))
	return nil
}

// advance moves the persisted clock n slots ahead.
func (e *env) advance(n uint64) (uint64, error) {
	slot := e.clock.Advance(n)
	if err := e.store.PutMeta(slotKey, slot); err != nil {
		return 0, err
	}
	return slot, nil
}
