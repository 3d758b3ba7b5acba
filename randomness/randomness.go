// Package randomness is a commit/reveal randomness feed. The authority of
// a feed first commits to the previous slot, then reveals a 32-byte value
// which consumers may read only in the slot it was revealed in.
package randomness

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/utils"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// ProgramID owns every feed.
var ProgramID = address.MustFromString("SBondMDrcV3K4kxZR1HNVT7osZxAHVHgYXL5Ze1oMUv")

const (
	// FeedSpace is the space allocated for a feed.
	FeedSpace = 88
	// ValueSize is the length of a revealed value.
	ValueSize = 32
)

var (
	ErrNotResolved      = xerrors.New("randomness not resolved in this slot")
	ErrNotCommitted     = xerrors.New("feed has no commitment")
	ErrAlreadyRevealed  = xerrors.New("feed already revealed for this commitment")
	ErrInvalidOwner     = xerrors.New("account is not a randomness feed")
	ErrInvalidValue     = xerrors.New("revealed value must be 32 bytes")
	ErrNotFeedAuthority = xerrors.New("signer is not the feed authority")
)

// Feed is the on-ledger state of one randomness source.
type Feed struct {
	Authority  address.Address
	SeedSlot   uint64
	RevealSlot uint64
	Value      []byte
	Committed  bool
}

// Resolved returns the revealed value, which is only readable in the slot
// of the reveal.
func (f *Feed) Resolved(clock ledger.Clock) ([]byte, error) {
	if len(f.Value) != ValueSize || f.RevealSlot != clock.Slot {
		return nil, ErrNotResolved
	}
	return append([]byte{}, f.Value...), nil
}

// FeedAddress is the feed an authority creates with nonce.
func FeedAddress(authority address.Address, nonce uint64) (address.Address, error) {
	a, _, err := address.FindProgramAddress(
		[][]byte{[]byte("randomness"), authority.Bytes(), utils.Uint64ToBytes(nonce)}, ProgramID)
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't derive feed address: %w", err)
	}
	return a, nil
}

// Load reads the feed at addr.
func Load(txn *state.Txn, addr address.Address) (*Feed, error) {
	acct, err := txn.Get(addr)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", addr, err)
	}
	if acct.Owner != ProgramID {
		return nil, xerrors.Errorf("%s: %w", addr, ErrInvalidOwner)
	}
	f := &Feed{}
	if err := protobuf.Decode(acct.Data, f); err != nil {
		return nil, xerrors.Errorf("couldn't decode feed: %v", err)
	}
	return f, nil
}

func save(txn *state.Txn, addr address.Address, f *Feed) error {
	buf, err := protobuf.Encode(f)
	if err != nil {
		return xerrors.Errorf("couldn't encode feed: %v", err)
	}
	return txn.SetData(addr, buf)
}

// Module is the randomness program.
type Module struct{}

// New returns the randomness program.
func New() *Module {
	return &Module{}
}

// ID implements ledger.Program.
func (m *Module) ID() address.Address {
	return ProgramID
}

// Load implements the lottery's view of feeds.
func (m *Module) Load(txn *state.Txn, addr address.Address) (*Feed, error) {
	return Load(txn, addr)
}

// Create allocates a new feed for the payer.
func (m *Module) Create(ctx *ledger.Context, nonce uint64) (address.Address, error) {
	authority := ctx.Payer()
	addr, err := FeedAddress(authority, nonce)
	if err != nil {
		return address.Zero, err
	}
	buf, err := protobuf.Encode(&Feed{Authority: authority})
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't encode feed: %v", err)
	}
	if err := ctx.CreateAccount(authority, addr, ProgramID, FeedSpace, buf); err != nil {
		return address.Zero, xerrors.Errorf("couldn't create feed: %w", err)
	}
	log.Lvlf2("randomness: feed %s created by %s", addr, authority)
	return addr, nil
}

// Commit binds the feed to the previous slot and clears any old value.
func (m *Module) Commit(ctx *ledger.Context, addr address.Address) error {
	f, err := m.authorized(ctx, addr)
	if err != nil {
		return err
	}
	if ctx.Clock.Slot == 0 {
		return xerrors.New("cannot commit in the first slot")
	}
	f.SeedSlot = ctx.Clock.Slot - 1
	f.Committed = true
	f.RevealSlot = 0
	f.Value = nil
	return save(ctx.Txn, addr, f)
}

// Reveal publishes the value for the current commitment.
func (m *Module) Reveal(ctx *ledger.Context, addr address.Address, value []byte) error {
	f, err := m.authorized(ctx, addr)
	if err != nil {
		return err
	}
	if len(value) != ValueSize {
		return ErrInvalidValue
	}
	if !f.Committed {
		return ErrNotCommitted
	}
	if len(f.Value) != 0 {
		return ErrAlreadyRevealed
	}
	f.RevealSlot = ctx.Clock.Slot
	f.Value = append([]byte{}, value...)
	return save(ctx.Txn, addr, f)
}

func (m *Module) authorized(ctx *ledger.Context, addr address.Address) (*Feed, error) {
	f, err := Load(ctx.Txn, addr)
	if err != nil {
		return nil, err
	}
	if !ctx.IsSigner(f.Authority) {
		return nil, xerrors.Errorf("%s: %w", f.Authority, ErrNotFeedAuthority)
	}
	return f, nil
}

// Execute implements ledger.Program.
func (m *Module) Execute(ctx *ledger.Context, inst ledger.Instruction) error {
	switch inst.Command {
	case "create":
		nonce, err := inst.ArgUint64("nonce")
		if err != nil {
			return err
		}
		_, err = m.Create(ctx, nonce)
		return err
	case "commit":
		feed, err := inst.ArgAddress("feed")
		if err != nil {
			return err
		}
		return m.Commit(ctx, feed)
	case "reveal":
		feed, err := inst.ArgAddress("feed")
		if err != nil {
			return err
		}
		value, err := inst.Arg("value")
		if err != nil {
			return err
		}
		return m.Reveal(ctx, feed, value)
	}
	return xerrors.Errorf("randomness: %s: %w", inst.Command, ledger.ErrUnknownCommand)
}
