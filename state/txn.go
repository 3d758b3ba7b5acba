package state

import (
	"github.com/dedis/tokenlottery/address"
	"golang.org/x/xerrors"
)

// Txn buffers the writes of one transaction on top of a Store. Nothing
// reaches the Store before Commit; dropping the Txn discards everything.
type Txn struct {
	base    Store
	writes  map[address.Address]*Account
	created map[address.Address]bool
	order   []address.Address
}

// NewTxn starts a transaction on base.
func NewTxn(base Store) *Txn {
	return &Txn{
		base:    base,
		writes:  make(map[address.Address]*Account),
		created: make(map[address.Address]bool),
	}
}

// Get returns a copy of the account as seen by this transaction.
func (t *Txn) Get(addr address.Address) (*Account, error) {
	if acct, ok := t.writes[addr]; ok {
		return acct.Copy(), nil
	}
	return t.base.Get(addr)
}

// Exists reports whether an account lives at addr.
func (t *Txn) Exists(addr address.Address) (bool, error) {
	_, err := t.Get(addr)
	if err == nil {
		return true, nil
	}
	if xerrors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

// Put records the new value of an account.
func (t *Txn) Put(addr address.Address, acct *Account) error {
	if _, ok := t.writes[addr]; !ok {
		exists, err := t.Exists(addr)
		if err != nil {
			return err
		}
		t.created[addr] = !exists
		t.order = append(t.order, addr)
	}
	t.writes[addr] = acct.Copy()
	return nil
}

// CreateAccount allocates a new account owned by owner. The payer is
// debited the rent-exempt minimum for space, which funds the new account.
func (t *Txn) CreateAccount(payer, addr, owner address.Address, space uint64, data []byte, rent Rent) error {
	exists, err := t.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return xerrors.Errorf("%s: %w", addr, ErrAccountExists)
	}
	lamports := rent.MinimumBalance(space)
	if lamports > 0 {
		if err := t.debit(payer, lamports); err != nil {
			return xerrors.Errorf("paying rent for %s: %w", addr, err)
		}
	}
	return t.Put(addr, &Account{
		Owner:    owner,
		Lamports: lamports,
		Space:    space,
		Data:     data,
	})
}

// SetData replaces the data of an existing account.
func (t *Txn) SetData(addr address.Address, data []byte) error {
	acct, err := t.Get(addr)
	if err != nil {
		return xerrors.Errorf("%s: %w", addr, err)
	}
	acct.Data = data
	return t.Put(addr, acct)
}

// Transfer moves lamports between two accounts. A missing destination is
// created as a plain system account.
func (t *Txn) Transfer(from, to address.Address, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	if from == to {
		_, err := t.Get(from)
		return err
	}
	if err := t.debit(from, lamports); err != nil {
		return err
	}
	return t.Credit(to, lamports)
}

// Credit adds lamports to an account, creating a system account if needed.
func (t *Txn) Credit(addr address.Address, lamports uint64) error {
	acct, err := t.Get(addr)
	if xerrors.Is(err, ErrAccountNotFound) {
		acct, err = &Account{}, nil
	}
	if err != nil {
		return err
	}
	if acct.Lamports+lamports < acct.Lamports {
		return xerrors.Errorf("%s: %w", addr, ErrOverflow)
	}
	acct.Lamports += lamports
	return t.Put(addr, acct)
}

func (t *Txn) debit(addr address.Address, lamports uint64) error {
	acct, err := t.Get(addr)
	if err != nil {
		if xerrors.Is(err, ErrAccountNotFound) {
			return xerrors.Errorf("%s holds no lamports: %w", addr, ErrInsufficientFunds)
		}
		return err
	}
	if acct.Lamports < lamports {
		return xerrors.Errorf("%s has %d, needs %d: %w", addr, acct.Lamports, lamports, ErrInsufficientFunds)
	}
	acct.Lamports -= lamports
	return t.Put(addr, acct)
}

// Changes lists the writes in the order accounts were first touched.
func (t *Txn) Changes() []Change {
	out := make([]Change, 0, len(t.order))
	for _, addr := range t.order {
		out = append(out, Change{
			Address: addr,
			Account: t.writes[addr].Copy(),
			Created: t.created[addr],
		})
	}
	return out
}

// Commit applies every write to the underlying store in one batch.
func (t *Txn) Commit() error {
	if len(t.order) == 0 {
		return nil
	}
	return t.base.Apply(t.Changes())
}
