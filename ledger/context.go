package ledger

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/state"
	"golang.org/x/xerrors"
)

// ErrMissingSignature is returned when an account that must sign did not.
var ErrMissingSignature = xerrors.New("missing required signature")

// Context is what a program sees while it executes one instruction.
type Context struct {
	Txn   *state.Txn
	Clock Clock
	Rent  state.Rent

	program address.Address
	signers []address.Address
}

// NewContext builds an execution context. Hosts other than Ledger use it
// to run programs over their own state.
func NewContext(txn *state.Txn, clock Clock, rent state.Rent, program address.Address,
	signers ...address.Address) *Context {
	return &Context{
		Txn:     txn,
		Clock:   clock,
		Rent:    rent,
		program: program,
		signers: signers,
	}
}

// Program is the program running the instruction. Only its own derived
// addresses can sign in this context.
func (c *Context) Program() address.Address {
	return c.program
}

// Payer is the first signer.
func (c *Context) Payer() address.Address {
	if len(c.signers) == 0 {
		return address.Zero
	}
	return c.signers[0]
}

// IsSigner reports whether a signed the transaction.
func (c *Context) IsSigner(a address.Address) bool {
	for _, s := range c.signers {
		if s == a {
			return true
		}
	}
	return false
}

// RequireSigner fails unless a signed the transaction.
func (c *Context) RequireSigner(a address.Address) error {
	if !c.IsSigner(a) {
		return xerrors.Errorf("%s: %w", a, ErrMissingSignature)
	}
	return nil
}

// CheckSigner verifies that a derived-address capability belongs to the
// running program and signs for expected.
func (c *Context) CheckSigner(s address.Signer, expected address.Address) error {
	if err := s.Verify(expected); err != nil {
		return err
	}
	if s.Program() != c.program {
		return xerrors.Errorf("signer of %s is not running: %w", s.Program(), address.ErrAuthorityMismatch)
	}
	return nil
}

// CreateAccount allocates an account owned by owner, paid by payer, who
// must have signed.
func (c *Context) CreateAccount(payer, addr, owner address.Address, space uint64, data []byte) error {
	if err := c.RequireSigner(payer); err != nil {
		return xerrors.Errorf("payer: %w", err)
	}
	return c.Txn.CreateAccount(payer, addr, owner, space, data, c.Rent)
}
