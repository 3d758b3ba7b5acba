package ledger

import (
	"sync"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/state"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

var (
	// ErrUnknownProgram is returned for instructions addressed to a program
	// the ledger does not host.
	ErrUnknownProgram = xerrors.New("unknown program")
	// ErrUnknownCommand is returned by programs for commands they do not
	// implement.
	ErrUnknownCommand = xerrors.New("unknown command")
)

// Program is executable ledger code.
type Program interface {
	ID() address.Address
	Execute(ctx *Context, inst Instruction) error
}

// Ledger runs transactions against a Store.
type Ledger struct {
	sync.Mutex
	store    state.Store
	clock    ClockSource
	rent     state.Rent
	programs map[address.Address]Program
}

// New returns a ledger hosting programs.
func New(store state.Store, clock ClockSource, rent state.Rent, programs ...Program) *Ledger {
	l := &Ledger{
		store:    store,
		clock:    clock,
		rent:     rent,
		programs: make(map[address.Address]Program),
	}
	for _, p := range programs {
		l.programs[p.ID()] = p
	}
	return l
}

// Rent is the storage policy of the ledger.
func (l *Ledger) Rent() state.Rent {
	return l.rent
}

// Clock returns the current ledger time.
func (l *Ledger) Clock() Clock {
	return l.clock.Now()
}

// Execute verifies and runs tx. Either every instruction takes effect or
// none does.
func (l *Ledger) Execute(tx *Transaction) error {
	l.Lock()
	defer l.Unlock()

	if len(tx.Signers) == 0 {
		return xerrors.Errorf("unsigned transaction: %w", ErrMissingSignature)
	}
	if err := tx.Verify(); err != nil {
		return err
	}
	clock := l.clock.Now()
	txn := state.NewTxn(l.store)
	for i, inst := range tx.Instructions {
		prog, ok := l.programs[inst.Program]
		if !ok {
			return xerrors.Errorf("instruction %d: %s: %w", i, inst.Program, ErrUnknownProgram)
		}
		log.Lvlf2("slot %d: %s %s", clock.Slot, inst.Program, inst.Command)
		ctx := NewContext(txn, clock, l.rent, inst.Program, tx.Signers...)
		if err := prog.Execute(ctx, inst); err != nil {
			log.Lvlf1("slot %d: %s rejected: %v", clock.Slot, inst.Command, err)
			return xerrors.Errorf("instruction %d (%s): %w", i, inst.Command, err)
		}
	}
	if err := txn.Commit(); err != nil {
		log.Errorf("couldn't commit transaction: %v", err)
		return xerrors.Errorf("couldn't commit: %w", err)
	}
	return nil
}

// Airdrop credits lamports to addr out of thin air.
func (l *Ledger) Airdrop(addr address.Address, lamports uint64) error {
	l.Lock()
	defer l.Unlock()
	txn := state.NewTxn(l.store)
	if err := txn.Credit(addr, lamports); err != nil {
		return err
	}
	log.Lvlf2("airdrop of %d to %s", lamports, addr)
	return txn.Commit()
}

// Account returns the committed account at addr.
func (l *Ledger) Account(addr address.Address) (*state.Account, error) {
	return l.store.Get(addr)
}
