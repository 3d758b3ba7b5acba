// Package token issues fungible and non-fungible tokens: mints, token
// accounts holding balances of one mint, and the associated token account
// of a wallet.
package token

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/state"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

var (
	// ProgramID owns every mint and token account.
	ProgramID = address.MustFromString("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	// AssociatedProgramID derives associated token account addresses.
	AssociatedProgramID = address.MustFromString("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

const (
	// MintSize is the space allocated for a mint.
	MintSize = 82
	// AccountSize is the space allocated for a token account.
	AccountSize = 165
)

var (
	ErrNotInitialized    = xerrors.New("not initialized")
	ErrInvalidOwner      = xerrors.New("account is not owned by the token program")
	ErrFixedSupply       = xerrors.New("mint has no mint authority")
	ErrMintMismatch      = xerrors.New("account belongs to another mint")
	ErrOwnerMismatch     = xerrors.New("owner does not match")
	ErrInsufficientFunds = xerrors.New("insufficient token balance")
	ErrOverflow          = xerrors.New("amount overflow")
)

// AuthorityType selects the authority changed by SetAuthority.
type AuthorityType int

const (
	MintTokens AuthorityType = iota
	FreezeAccount
)

// Mint describes a token. A zero authority means there is none.
type Mint struct {
	MintAuthority   address.Address
	Supply          uint64
	Decimals        uint32
	FreezeAuthority address.Address
	IsInitialized   bool
}

// Account holds a balance of one mint.
type Account struct {
	Mint   address.Address
	Owner  address.Address
	Amount uint64
}

// AssociatedAddress returns the canonical token account of wallet for
// mint.
func AssociatedAddress(wallet, mint address.Address) (address.Address, error) {
	a, _, err := address.FindProgramAddress(
		[][]byte{wallet.Bytes(), ProgramID.Bytes(), mint.Bytes()}, AssociatedProgramID)
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't derive associated account: %w", err)
	}
	return a, nil
}

// LoadMint reads the mint at addr.
func LoadMint(txn *state.Txn, addr address.Address) (*Mint, error) {
	m := &Mint{}
	if err := load(txn, addr, m); err != nil {
		return nil, err
	}
	if !m.IsInitialized {
		return nil, xerrors.Errorf("mint %s: %w", addr, ErrNotInitialized)
	}
	return m, nil
}

// LoadAccount reads the token account at addr.
func LoadAccount(txn *state.Txn, addr address.Address) (*Account, error) {
	a := &Account{}
	if err := load(txn, addr, a); err != nil {
		return nil, err
	}
	if a.Mint.IsZero() {
		return nil, xerrors.Errorf("token account %s: %w", addr, ErrNotInitialized)
	}
	return a, nil
}

func load(txn *state.Txn, addr address.Address, msg interface{}) error {
	acct, err := txn.Get(addr)
	if err != nil {
		return xerrors.Errorf("%s: %w", addr, err)
	}
	if acct.Owner != ProgramID {
		return xerrors.Errorf("%s: %w", addr, ErrInvalidOwner)
	}
	if err := protobuf.Decode(acct.Data, msg); err != nil {
		return xerrors.Errorf("couldn't decode %s: %v", addr, err)
	}
	return nil
}

func encode(msg interface{}) ([]byte, error) {
	buf, err := protobuf.Encode(msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode: %v", err)
	}
	return buf, nil
}

func store(txn *state.Txn, addr address.Address, msg interface{}) error {
	buf, err := encode(msg)
	if err != nil {
		return err
	}
	return txn.SetData(addr, buf)
}
