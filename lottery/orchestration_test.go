package lottery

import (
	"crypto/sha256"
	"testing"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/state"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

var errRejected = xerrors.New("rejected")

// recorder stands in for the token and metadata modules. Each call leaves
// a trace account in the transaction and can be told to fail.
type recorder struct {
	calls   []string
	signers []address.Address
	failAt  string
}

func traceAddress(step string) address.Address {
	return address.Address(sha256.Sum256([]byte(step)))
}

func (r *recorder) record(ctx *ledger.Context, step string, s address.Signer) error {
	r.calls = append(r.calls, step)
	r.signers = append(r.signers, s.Address())
	if err := ctx.Txn.Put(traceAddress(step), &state.Account{Data: []byte(step)}); err != nil {
		return err
	}
	if step == r.failAt {
		return errRejected
	}
	return nil
}

func (r *recorder) InitializeMint(ctx *ledger.Context, payer address.Address, mint address.Signer,
	decimals uint32, mintAuthority, freezeAuthority address.Address) error {
	return r.record(ctx, "initialize_mint", mint)
}

func (r *recorder) InitializeAccount(ctx *ledger.Context, payer address.Address, account address.Signer,
	mint, owner address.Address) error {
	return r.record(ctx, "initialize_account", account)
}

func (r *recorder) CreateAssociatedAccount(ctx *ledger.Context, payer, wallet, mint address.Address) (address.Address, error) {
	return address.Zero, r.record(ctx, "create_associated_account", address.Signer{})
}

func (r *recorder) MintTo(ctx *ledger.Context, mint, destination address.Address, authority address.Signer,
	amount uint64) error {
	return r.record(ctx, "mint_to", authority)
}

func (r *recorder) CreateMetadataAccounts(ctx *ledger.Context, args metadata.CreateMetadataArgs) error {
	if args.MintAuthority.Address() != args.UpdateAuthority.Address() {
		return xerrors.New("authorities differ")
	}
	if !args.UpdateAuthorityIsSigner {
		return xerrors.New("update authority must sign")
	}
	return r.record(ctx, "create_metadata", args.MintAuthority)
}

func (r *recorder) CreateMasterEdition(ctx *ledger.Context, args metadata.CreateMasterEditionArgs) error {
	if !args.HasMaxSupply || args.MaxSupply != 0 {
		return xerrors.New("expected a max supply of 0")
	}
	return r.record(ctx, "create_master_edition", args.MintAuthority)
}

func (r *recorder) SignMetadata(ctx *ledger.Context, md address.Address, creator address.Signer) error {
	return r.record(ctx, "sign_metadata", creator)
}

func (r *recorder) SetAndVerifySizedCollectionItem(ctx *ledger.Context, args metadata.VerifyCollectionArgs) error {
	return r.record(ctx, "verify_collection_item", args.CollectionAuthority)
}

func newRecordingLedger(t *testing.T, r *recorder) (*ledger.Ledger, *state.MemStore, *key.Pair, address.Address) {
	store := state.NewMemStore()
	l := ledger.New(store, ledger.NewManualClock(1), state.DefaultRent, New(r, r, nil))
	kp := key.NewKeyPair(cothority.Suite)
	payer, err := ledger.KeyAddress(kp)
	require.NoError(t, err)
	require.NoError(t, l.Airdrop(payer, 1e10))
	return l, store, kp, payer
}

func initLotteryTx(t *testing.T, kp *key.Pair) *ledger.Transaction {
	tx := ledger.NewTransaction(ledger.NewInstruction(ProgramID, "initialize_lottery"))
	require.NoError(t, tx.Sign(kp))
	return tx
}

func TestInitializeLottery_Order(t *testing.T) {
	r := &recorder{}
	l, store, kp, _ := newRecordingLedger(t, r)
	require.NoError(t, l.Execute(initLotteryTx(t, kp)))

	require.Equal(t, []string{
		"initialize_mint",
		"initialize_account",
		"mint_to",
		"create_metadata",
		"create_master_edition",
		"sign_metadata",
	}, r.calls)

	mint, err := CollectionMintAddress()
	require.NoError(t, err)
	holding, err := CollectionTokenAddress()
	require.NoError(t, err)
	require.Equal(t, holding, r.signers[1])
	// The four orchestrated calls all present the collection mint's proof.
	for _, s := range r.signers[2:] {
		require.Equal(t, mint, s)
	}
	for _, step := range r.calls {
		_, err := store.Get(traceAddress(step))
		require.NoError(t, err)
	}
}

func TestInitializeLottery_Rollback(t *testing.T) {
	for _, step := range []string{"mint_to", "create_metadata", "create_master_edition", "sign_metadata"} {
		r := &recorder{failAt: step}
		l, store, kp, payer := newRecordingLedger(t, r)
		before := store.Len()

		err := l.Execute(initLotteryTx(t, kp))
		require.True(t, xerrors.Is(err, errRejected), step)
		var modErr *ModuleError
		require.True(t, xerrors.As(err, &modErr), step)
		require.Equal(t, step, r.calls[len(r.calls)-1])

		// No trace of any step survives the failed transaction.
		require.Equal(t, before, store.Len(), step)
		for _, s := range r.calls {
			_, err := store.Get(traceAddress(s))
			require.True(t, xerrors.Is(err, state.ErrAccountNotFound), s)
		}
		acct, err := store.Get(payer)
		require.NoError(t, err)
		require.Equal(t, uint64(1e10), acct.Lamports)
	}
}

func TestInitializeLottery_ModuleError(t *testing.T) {
	r := &recorder{failAt: "mint_to"}
	l, _, kp, _ := newRecordingLedger(t, r)
	err := l.Execute(initLotteryTx(t, kp))
	var modErr *ModuleError
	require.True(t, xerrors.As(err, &modErr))
	require.Equal(t, "token", modErr.Module)

	r = &recorder{failAt: "sign_metadata"}
	l, _, kp, _ = newRecordingLedger(t, r)
	err = l.Execute(initLotteryTx(t, kp))
	require.True(t, xerrors.As(err, &modErr))
	require.Equal(t, "metadata", modErr.Module)
	require.Equal(t, "sign metadata", modErr.Step)
}
