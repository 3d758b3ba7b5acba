package lottery

import (
	"bytes"
	"testing"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/randomness"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/token"
	"github.com/dedis/tokenlottery/utils"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

type user struct {
	kp   *key.Pair
	addr address.Address
}

type testEnv struct {
	store  *state.MemStore
	clock  *ledger.ManualClock
	ledger *ledger.Ledger
	admin  user
}

func newTestEnv(t *testing.T, slot uint64) *testEnv {
	tokens := token.New()
	registry := metadata.New(tokens)
	rnd := randomness.New()
	env := &testEnv{
		store: state.NewMemStore(),
		clock: ledger.NewManualClock(slot),
	}
	env.ledger = ledger.New(env.store, env.clock, state.DefaultRent,
		New(tokens, registry, rnd), tokens, registry, rnd)
	env.admin = env.newUser(t)
	return env
}

func (env *testEnv) newUser(t *testing.T) user {
	kp := key.NewKeyPair(cothority.Suite)
	addr, err := ledger.KeyAddress(kp)
	require.NoError(t, err)
	require.NoError(t, env.ledger.Airdrop(addr, 1e10))
	return user{kp: kp, addr: addr}
}

func (env *testEnv) run(t *testing.T, u user, insts ...ledger.Instruction) error {
	tx := ledger.NewTransaction(insts...)
	require.NoError(t, tx.Sign(u.kp))
	return env.ledger.Execute(tx)
}

func (env *testEnv) lamports(t *testing.T, a address.Address) uint64 {
	acct, err := env.store.Get(a)
	require.NoError(t, err)
	return acct.Lamports
}

func u64(name string, v uint64) ledger.Argument {
	return ledger.Argument{Name: name, Value: utils.Uint64ToBytes(v)}
}

func initConfig(start, end, price uint64) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, "initialize_config",
		u64("start", start), u64("end", end), u64("price", price))
}

func TestInitializeConfig(t *testing.T) {
	env := newTestEnv(t, 1)
	require.NoError(t, env.run(t, env.admin, initConfig(1000, 2000, 50)))

	tl, err := LoadConfig(env.store)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), tl.Start)
	require.Equal(t, uint64(2000), tl.End)
	require.Equal(t, uint64(50), tl.TicketPrice)
	require.Equal(t, uint64(0), tl.Pot)
	require.Equal(t, uint64(0), tl.TotalTickets)
	require.False(t, tl.WinnerChosen)
	require.True(t, tl.Randomness.IsZero())
	require.Equal(t, env.admin.addr, tl.Authority)

	addr, bump, err := ConfigAddress()
	require.NoError(t, err)
	require.Equal(t, bump, tl.Bump)
	acct, err := env.store.Get(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(Space), acct.Space)
	require.Equal(t, state.DefaultRent.MinimumBalance(Space), acct.Lamports)
	require.Equal(t, uint64(1e10)-acct.Lamports, env.lamports(t, env.admin.addr))

	// A second call fails and leaves the record untouched.
	other := env.newUser(t)
	err = env.run(t, other, initConfig(1, 2, 3))
	require.True(t, xerrors.Is(err, ErrDuplicateInitialization))
	var dup *DuplicateInitializationError
	require.True(t, xerrors.As(err, &dup))
	require.Equal(t, addr, dup.Address)
	again, err := LoadConfig(env.store)
	require.NoError(t, err)
	require.Equal(t, tl, again)
}

func TestInitializeConfig_Validation(t *testing.T) {
	env := newTestEnv(t, 1)
	require.True(t, xerrors.Is(env.run(t, env.admin, initConfig(2000, 1000, 50)), ErrInvalidWindow))
	require.True(t, xerrors.Is(env.run(t, env.admin, initConfig(1000, 1000, 50)), ErrInvalidWindow))
	require.True(t, xerrors.Is(env.run(t, env.admin, initConfig(1000, 2000, 0)), ErrInvalidPrice))
	_, err := LoadConfig(env.store)
	require.True(t, xerrors.Is(err, state.ErrAccountNotFound))

	inst := ledger.NewInstruction(ProgramID, "initialize_config", u64("start", 1))
	require.True(t, xerrors.Is(env.run(t, env.admin, inst), ledger.ErrMissingArgument))
}

func TestInitializeLottery(t *testing.T) {
	env := newTestEnv(t, 1)
	initLottery := ledger.NewInstruction(ProgramID, "initialize_lottery")
	require.NoError(t, env.run(t, env.admin, initLottery))

	mint, err := CollectionMintAddress()
	require.NoError(t, err)
	holding, err := CollectionTokenAddress()
	require.NoError(t, err)
	bal, err := token.Balance(env.store, holding)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal)

	txn := state.NewTxn(env.store)
	acct, err := token.LoadAccount(txn, holding)
	require.NoError(t, err)
	require.Equal(t, mint, acct.Mint)
	require.Equal(t, mint, acct.Owner)

	mdAddr, err := metadata.MetadataAddress(mint)
	require.NoError(t, err)
	md, err := metadata.Load(txn, mdAddr)
	require.NoError(t, err)
	require.Equal(t, Name, md.Name())
	require.Equal(t, mint, md.UpdateAuthority)
	require.Len(t, md.Data.Creators, 1)
	require.Equal(t, mint, md.Data.Creators[0].Address)
	require.True(t, md.Data.Creators[0].Verified)
	require.Equal(t, uint32(100), md.Data.Creators[0].Share)
	require.Equal(t, uint64(0), md.CollectionDetails.Size)
	require.Nil(t, md.Data.Collection)

	edition, err := metadata.EditionAddress(mint)
	require.NoError(t, err)
	me, err := metadata.LoadEdition(txn, edition)
	require.NoError(t, err)
	require.Equal(t, uint64(0), me.MaxSupply)
	mi, err := token.LoadMint(txn, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(1), mi.Supply)
	require.Equal(t, edition, mi.MintAuthority)

	err = env.run(t, env.admin, initLottery)
	var dup *DuplicateInitializationError
	require.True(t, xerrors.As(err, &dup))
	require.Equal(t, mint, dup.Address)
}

func TestInitializeLottery_AllOrNothing(t *testing.T) {
	env := newTestEnv(t, 1)
	mint, err := CollectionMintAddress()
	require.NoError(t, err)
	edition, err := metadata.EditionAddress(mint)
	require.NoError(t, err)
	// Squatting the edition address makes the third step fail.
	require.NoError(t, env.store.Apply([]state.Change{{
		Address: edition, Account: &state.Account{Owner: metadata.ProgramID}}}))
	before := env.lamports(t, env.admin.addr)

	err = env.run(t, env.admin, ledger.NewInstruction(ProgramID, "initialize_lottery"))
	require.True(t, xerrors.Is(err, state.ErrAccountExists))
	var modErr *ModuleError
	require.True(t, xerrors.As(err, &modErr))
	require.Equal(t, "create master edition", modErr.Step)

	_, err = env.store.Get(mint)
	require.True(t, xerrors.Is(err, state.ErrAccountNotFound))
	holding, err := CollectionTokenAddress()
	require.NoError(t, err)
	_, err = env.store.Get(holding)
	require.True(t, xerrors.Is(err, state.ErrAccountNotFound))
	mdAddr, err := metadata.MetadataAddress(mint)
	require.NoError(t, err)
	_, err = env.store.Get(mdAddr)
	require.True(t, xerrors.Is(err, state.ErrAccountNotFound))
	require.Equal(t, before, env.lamports(t, env.admin.addr))
}

func TestInitializeLottery_Unsigned(t *testing.T) {
	p := New(token.New(), nil, nil)
	ctx := ledger.NewContext(state.NewTxn(state.NewMemStore()), ledger.Clock{}, state.NoRent, ProgramID)
	require.True(t, xerrors.Is(p.InitializeLottery(ctx), ledger.ErrMissingSignature))
}

func TestLottery_Draw(t *testing.T) {
	env := newTestEnv(t, 5)
	require.NoError(t, env.run(t, env.admin,
		initConfig(10, 20, 1000),
		ledger.NewInstruction(ProgramID, "initialize_lottery")))

	buy := ledger.NewInstruction(ProgramID, "buy_ticket")
	alice, bob := env.newUser(t), env.newUser(t)
	require.True(t, xerrors.Is(env.run(t, alice, buy), ErrLotteryNotOpen))

	env.clock.Set(10)
	require.NoError(t, env.run(t, alice, buy))
	require.NoError(t, env.run(t, bob, buy))
	require.NoError(t, env.run(t, alice, buy))

	tl, err := LoadConfig(env.store)
	require.NoError(t, err)
	require.Equal(t, uint64(3), tl.TotalTickets)
	require.Equal(t, uint64(3000), tl.Pot)

	txn := state.NewTxn(env.store)
	coll, err := CollectionMintAddress()
	require.NoError(t, err)
	collMd, err := metadata.MetadataAddress(coll)
	require.NoError(t, err)
	parent, err := metadata.Load(txn, collMd)
	require.NoError(t, err)
	require.Equal(t, uint64(3), parent.CollectionDetails.Size)
	ticket1, err := TicketMintAddress(1)
	require.NoError(t, err)
	md1, err := metadata.MetadataAddress(ticket1)
	require.NoError(t, err)
	item, err := metadata.Load(txn, md1)
	require.NoError(t, err)
	require.Equal(t, "Token Lottery Ticket #1", item.Name())
	require.True(t, item.Data.Collection.Verified)

	// The randomness feed is committed in the same transaction as the
	// lottery records it.
	feed, err := randomness.FeedAddress(env.admin.addr, 1)
	require.NoError(t, err)
	require.NoError(t, env.run(t, env.admin, ledger.NewInstruction(randomness.ProgramID, "create",
		u64("nonce", 1))))
	feedArg := ledger.Argument{Name: "feed", Value: feed.Bytes()}
	lotteryFeedArg := ledger.Argument{Name: "randomness", Value: feed.Bytes()}
	commit := []ledger.Instruction{
		ledger.NewInstruction(randomness.ProgramID, "commit", feedArg),
		ledger.NewInstruction(ProgramID, "commit_randomness", lotteryFeedArg),
	}
	require.True(t, xerrors.Is(env.run(t, bob, commit[1]), ErrNotAuthorized))
	require.NoError(t, env.run(t, env.admin, commit...))

	value := bytes.Repeat([]byte{0}, 32)
	value[0] = 4
	revealFeed := ledger.NewInstruction(randomness.ProgramID, "reveal", feedArg,
		ledger.Argument{Name: "value", Value: value})
	reveal := ledger.NewInstruction(ProgramID, "reveal_winner", lotteryFeedArg)

	require.True(t, xerrors.Is(env.run(t, env.admin, revealFeed, reveal), ErrLotteryNotCompleted))
	env.clock.Set(21)
	// Without the feed reveal in this slot the value is not readable.
	require.True(t, xerrors.Is(env.run(t, env.admin, reveal), ErrRandomnessNotResolved))
	require.NoError(t, env.run(t, env.admin, revealFeed, reveal))

	tl, err = LoadConfig(env.store)
	require.NoError(t, err)
	require.True(t, tl.WinnerChosen)
	require.Equal(t, uint64(1), tl.Winner)
	require.Equal(t, feed, tl.Randomness)

	claim := ledger.NewInstruction(ProgramID, "claim_winnings")
	require.True(t, xerrors.Is(env.run(t, alice, claim), ErrNoTicket))

	before := env.lamports(t, bob.addr)
	require.NoError(t, env.run(t, bob, claim))
	require.Equal(t, before+3000, env.lamports(t, bob.addr))
	tl, err = LoadConfig(env.store)
	require.NoError(t, err)
	require.Equal(t, uint64(0), tl.Pot)

	require.True(t, xerrors.Is(env.run(t, env.admin, reveal), ErrWinnerChosen))
}

func TestLottery_StaleRandomness(t *testing.T) {
	env := newTestEnv(t, 10)
	require.NoError(t, env.run(t, env.admin, initConfig(10, 20, 1000)))
	feed, err := randomness.FeedAddress(env.admin.addr, 0)
	require.NoError(t, err)
	feedArg := ledger.Argument{Name: "feed", Value: feed.Bytes()}
	require.NoError(t, env.run(t, env.admin,
		ledger.NewInstruction(randomness.ProgramID, "create", u64("nonce", 0)),
		ledger.NewInstruction(randomness.ProgramID, "commit", feedArg)))

	env.clock.Advance(1)
	commit := ledger.NewInstruction(ProgramID, "commit_randomness",
		ledger.Argument{Name: "randomness", Value: feed.Bytes()})
	require.True(t, xerrors.Is(env.run(t, env.admin, commit), ErrRandomnessAlreadyRevealed))

	// Another feed than the committed one is refused at reveal time.
	reveal := ledger.NewInstruction(ProgramID, "reveal_winner",
		ledger.Argument{Name: "randomness", Value: feed.Bytes()})
	env.clock.Set(30)
	require.True(t, xerrors.Is(env.run(t, env.admin, reveal), ErrIncorrectRandomnessAccount))
}

func TestLottery_NoTickets(t *testing.T) {
	env := newTestEnv(t, 10)
	require.NoError(t, env.run(t, env.admin, initConfig(10, 20, 1000)))
	feed, err := randomness.FeedAddress(env.admin.addr, 0)
	require.NoError(t, err)
	feedArg := ledger.Argument{Name: "feed", Value: feed.Bytes()}
	lotteryFeedArg := ledger.Argument{Name: "randomness", Value: feed.Bytes()}
	require.NoError(t, env.run(t, env.admin,
		ledger.NewInstruction(randomness.ProgramID, "create", u64("nonce", 0)),
		ledger.NewInstruction(randomness.ProgramID, "commit", feedArg),
		ledger.NewInstruction(ProgramID, "commit_randomness", lotteryFeedArg)))

	env.clock.Set(25)
	err = env.run(t, env.admin,
		ledger.NewInstruction(randomness.ProgramID, "reveal", feedArg,
			ledger.Argument{Name: "value", Value: make([]byte, 32)}),
		ledger.NewInstruction(ProgramID, "reveal_winner", lotteryFeedArg))
	require.True(t, xerrors.Is(err, ErrNoTickets))

	claim := ledger.NewInstruction(ProgramID, "claim_winnings")
	require.True(t, xerrors.Is(env.run(t, env.admin, claim), ErrWinnerNotChosen))
}
