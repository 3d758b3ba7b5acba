package contracts

import (
	"testing"
	"time"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/lottery"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/token"
	"github.com/dedis/tokenlottery/utils"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func getAccount(t *testing.T, cl *byzcoin.Client, addr address.Address, interval time.Duration) *state.Account {
	id := byzcoin.NewInstanceID(addr.Bytes())
	pr, err := cl.WaitProof(id, 2*interval, nil)
	require.NoError(t, err)
	require.True(t, pr.InclusionProof.Match(id.Slice()))
	v, cid, _, err := pr.Get(id.Slice())
	require.NoError(t, err)
	require.Equal(t, ContractTokenLotteryID, cid)
	acct := &state.Account{}
	require.NoError(t, protobuf.Decode(v, acct))
	return acct
}

func TestContractTokenLottery_Spawn(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	defer local.CloseAll()

	signer := darc.NewSignerEd25519(nil, nil)
	_, roster, _ := local.GenTree(4, true)

	genesisMsg, err := byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, roster,
		[]string{"spawn:" + ContractTokenLotteryID}, signer.Identity())
	require.NoError(t, err)
	gDarc := &genesisMsg.GenesisDarc
	genesisMsg.BlockInterval = time.Second

	cl, _, err := byzcoin.NewLedger(genesisMsg, false)
	require.NoError(t, err)

	spawn := func(counter uint64, args ...byzcoin.Argument) error {
		ctx, err := cl.CreateTransaction(byzcoin.Instruction{
			InstanceID: byzcoin.NewInstanceID(gDarc.GetBaseID()),
			Spawn: &byzcoin.Spawn{
				ContractID: ContractTokenLotteryID,
				Args:       args,
			},
			SignerCounter: []uint64{counter},
		})
		require.NoError(t, err)
		require.NoError(t, ctx.FillSignersAndSignWith(signer))
		_, err = cl.AddTransactionAndWait(ctx, 10)
		return err
	}

	require.NoError(t, spawn(1,
		byzcoin.Argument{Name: "command", Value: []byte("initialize_config")},
		byzcoin.Argument{Name: "start", Value: utils.Uint64ToBytes(1000)},
		byzcoin.Argument{Name: "end", Value: utils.Uint64ToBytes(2000)},
		byzcoin.Argument{Name: "price", Value: utils.Uint64ToBytes(50)}))

	configAddr, _, err := lottery.ConfigAddress()
	require.NoError(t, err)
	acct := getAccount(t, cl, configAddr, genesisMsg.BlockInterval)
	require.Equal(t, lottery.ProgramID, acct.Owner)
	tl, err := lottery.DecodeTokenLottery(acct.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), tl.Start)
	require.Equal(t, uint64(50), tl.TicketPrice)
	buf, err := signer.Ed25519.Point.MarshalBinary()
	require.NoError(t, err)
	requester, err := address.FromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, requester, tl.Authority)

	require.NoError(t, spawn(2,
		byzcoin.Argument{Name: "command", Value: []byte("initialize_lottery")}))
	holding, err := lottery.CollectionTokenAddress()
	require.NoError(t, err)
	acct = getAccount(t, cl, holding, genesisMsg.BlockInterval)
	held := &token.Account{}
	require.NoError(t, protobuf.Decode(acct.Data, held))
	require.Equal(t, uint64(1), held.Amount)

	// Both initializations are one-shot.
	require.Error(t, spawn(3,
		byzcoin.Argument{Name: "command", Value: []byte("initialize_lottery")}))
	require.Error(t, spawn(3,
		byzcoin.Argument{Name: "command", Value: []byte("buy_ticket")}))
}

func TestSignerAddress(t *testing.T) {
	signer := darc.NewSignerEd25519(nil, nil)
	inst := byzcoin.Instruction{SignerIdentities: []darc.Identity{signer.Identity()}}
	a, err := signerAddress(inst)
	require.NoError(t, err)
	buf, err := signer.Ed25519.Point.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, buf, a.Bytes())

	_, err = signerAddress(byzcoin.Instruction{})
	require.True(t, xerrors.Is(err, ledger.ErrMissingSignature))

	inst.SignerIdentities = []darc.Identity{darc.NewIdentityDarc(darc.ID{1, 2, 3})}
	_, err = signerAddress(inst)
	require.True(t, xerrors.Is(err, ledger.ErrMissingSignature))
}
