// Package state keeps the ledger accounts. Programs never write to a
// Store directly: they work on a Txn, and the host commits the Txn only
// when the whole transaction succeeded.
package state

import (
	"github.com/dedis/tokenlottery/address"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

var (
	// ErrAccountNotFound is returned when no account lives at an address.
	ErrAccountNotFound = xerrors.New("account not found")
	// ErrAccountExists is returned when creating an account at an address
	// that already holds one.
	ErrAccountExists = xerrors.New("account already exists")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = xerrors.New("insufficient funds")
	// ErrOverflow is returned when a credit overflows a balance.
	ErrOverflow = xerrors.New("balance overflow")
)

// Account is the unit of ledger storage. Owner is the program allowed to
// change Data; Space is the allocation the creator paid rent for.
type Account struct {
	Owner    address.Address
	Lamports uint64
	Space    uint64
	Data     []byte
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	return &Account{
		Owner:    a.Owner,
		Lamports: a.Lamports,
		Space:    a.Space,
		Data:     append([]byte{}, a.Data...),
	}
}

// Encode returns the protobuf encoding of the account.
func (a *Account) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(a)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode account: %v", err)
	}
	return buf, nil
}

// DecodeAccount parses an account previously written by Encode.
func DecodeAccount(buf []byte) (*Account, error) {
	acct := &Account{}
	if err := protobuf.Decode(buf, acct); err != nil {
		return nil, xerrors.Errorf("couldn't decode account: %v", err)
	}
	return acct, nil
}

// Change is one account write of a committed transaction.
type Change struct {
	Address address.Address
	Account *Account
	// Created is true when the address held no account before the
	// transaction.
	Created bool
}

// Store is the committed account state.
type Store interface {
	// Get returns a copy of the account at addr or ErrAccountNotFound.
	Get(addr address.Address) (*Account, error)
	// Apply writes all changes atomically.
	Apply(changes []Change) error
	// ForEach visits every account in address order.
	ForEach(fn func(addr address.Address, acct *Account) error) error
}
