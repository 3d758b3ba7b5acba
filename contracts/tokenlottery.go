package contracts

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/lottery"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/randomness"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/token"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

const ContractTokenLotteryID = "tokenLottery"

func init() {
	err := byzcoin.RegisterGlobalContract(ContractTokenLotteryID, ContractTokenLotteryFromBytes)
	if err != nil {
		log.ErrFatal(err)
	}
}

// ContractTokenLottery runs the lottery initialization on byzcoin. Every
// ledger account touched by the lottery becomes an instance of this
// contract, keyed by its address.
type ContractTokenLottery struct {
	byzcoin.BasicContract
	Account *state.Account
}

func ContractTokenLotteryFromBytes(in []byte) (byzcoin.Contract, error) {
	c := &ContractTokenLottery{}
	if len(in) == 0 {
		return c, nil
	}
	acct, err := state.DecodeAccount(in)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	c.Account = acct
	return c, nil
}

// Spawn runs one of the initialization commands. The first identity
// that signed the instruction is the requester; it must be an Ed25519
// key, whose point is its ledger address.
func (c *ContractTokenLottery) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("GetValues failed: %v", err)
		return
	}

	command := string(inst.Spawn.Args.Search("command"))
	switch command {
	case "initialize_config", "initialize_lottery":
	default:
		return nil, nil, xerrors.Errorf("%s: %w", command, ledger.ErrUnknownCommand)
	}
	payer, err := signerAddress(inst)
	if err != nil {
		return nil, nil, err
	}
	var args []ledger.Argument
	for _, arg := range inst.Spawn.Args {
		if arg.Name != "command" {
			args = append(args, ledger.Argument{Name: arg.Name, Value: arg.Value})
		}
	}

	txn := state.NewTxn(&trieStore{rst: rst})
	clock := ledger.Clock{Slot: uint64(rst.GetIndex())}
	ctx := ledger.NewContext(txn, clock, state.NoRent, lottery.ProgramID, payer)
	err = newProgram().Execute(ctx, ledger.NewInstruction(lottery.ProgramID, command, args...))
	if err != nil {
		log.Errorf("%s failed: %v", command, err)
		return nil, nil, err
	}

	for _, ch := range txn.Changes() {
		var buf []byte
		buf, err = ch.Account.Encode()
		if err != nil {
			return
		}
		action := byzcoin.Update
		if ch.Created {
			action = byzcoin.Create
		}
		sc = append(sc, byzcoin.NewStateChange(action, byzcoin.NewInstanceID(ch.Address.Bytes()),
			ContractTokenLotteryID, buf, darcID))
	}
	log.Lvlf2("%s: %d state changes", command, len(sc))
	return
}

func (c *ContractTokenLottery) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("token lottery accounts cannot be invoked")
}

func (c *ContractTokenLottery) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("token lottery accounts cannot be deleted")
}

// signerAddress is the ledger address of the first signer of inst.
func signerAddress(inst byzcoin.Instruction) (address.Address, error) {
	if len(inst.SignerIdentities) == 0 {
		return address.Zero, xerrors.Errorf("unsigned instruction: %w", ledger.ErrMissingSignature)
	}
	id := inst.SignerIdentities[0]
	if id.Ed25519 == nil {
		return address.Zero, xerrors.Errorf("signer %s is not an ed25519 key: %w", id, ledger.ErrMissingSignature)
	}
	buf, err := id.Ed25519.Point.MarshalBinary()
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't marshal signer: %v", err)
	}
	return address.FromBytes(buf)
}

func newProgram() *lottery.Program {
	tokens := token.New()
	return lottery.New(tokens, metadata.New(tokens), randomness.New())
}

// trieStore reads accounts from the byzcoin state. Writes go back to
// byzcoin as state changes, never through Apply.
type trieStore struct {
	rst byzcoin.ReadOnlyStateTrie
}

func (s *trieStore) Get(addr address.Address) (*state.Account, error) {
	pr, err := s.rst.GetProof(addr.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("couldn't get proof: %v", err)
	}
	if !pr.Match(addr.Bytes()) {
		return nil, state.ErrAccountNotFound
	}
	buf, _, contractID, _, err := s.rst.GetValues(addr.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("couldn't get %s: %v", addr, err)
	}
	if contractID != ContractTokenLotteryID {
		return nil, xerrors.Errorf("%s is a %s instance", addr, contractID)
	}
	return state.DecodeAccount(buf)
}

func (s *trieStore) Apply([]state.Change) error {
	return xerrors.New("byzcoin state is read-only")
}

func (s *trieStore) ForEach(fn func(addr address.Address, acct *state.Account) error) error {
	return s.rst.ForEach(func(k, v []byte) error {
		addr, err := address.FromBytes(k)
		if err != nil {
			return nil
		}
		acct, err := s.Get(addr)
		if err != nil {
			return nil
		}
		return fn(addr, acct)
	})
}
