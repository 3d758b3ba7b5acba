package token

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/state"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Module is the token program. Other programs call its methods directly,
// passing derived-address capabilities where the token program would
// need a signature.
type Module struct{}

// New returns the token program.
func New() *Module {
	return &Module{}
}

// ID implements ledger.Program.
func (m *Module) ID() address.Address {
	return ProgramID
}

// InitializeMint creates a mint at the address the capability signs for.
func (m *Module) InitializeMint(ctx *ledger.Context, payer address.Address, mint address.Signer,
	decimals uint32, mintAuthority, freezeAuthority address.Address) error {
	if err := ctx.CheckSigner(mint, mint.Address()); err != nil {
		return err
	}
	buf, err := encode(&Mint{
		MintAuthority:   mintAuthority,
		Decimals:        decimals,
		FreezeAuthority: freezeAuthority,
		IsInitialized:   true,
	})
	if err != nil {
		return err
	}
	if err := ctx.CreateAccount(payer, mint.Address(), ProgramID, MintSize, buf); err != nil {
		return xerrors.Errorf("couldn't create mint: %w", err)
	}
	log.Lvlf3("token: new mint %s", mint.Address())
	return nil
}

// InitializeAccount creates a token account for mint at the address the
// capability signs for.
func (m *Module) InitializeAccount(ctx *ledger.Context, payer address.Address, account address.Signer,
	mint, owner address.Address) error {
	if err := ctx.CheckSigner(account, account.Address()); err != nil {
		return err
	}
	return m.createAccount(ctx, payer, account.Address(), mint, owner)
}

// CreateAssociatedAccount creates the associated token account of wallet
// for mint and returns its address.
func (m *Module) CreateAssociatedAccount(ctx *ledger.Context, payer, wallet, mint address.Address) (address.Address, error) {
	addr, err := AssociatedAddress(wallet, mint)
	if err != nil {
		return address.Zero, err
	}
	if err := m.createAccount(ctx, payer, addr, mint, wallet); err != nil {
		return address.Zero, err
	}
	return addr, nil
}

func (m *Module) createAccount(ctx *ledger.Context, payer, addr, mint, owner address.Address) error {
	if _, err := LoadMint(ctx.Txn, mint); err != nil {
		return err
	}
	buf, err := encode(&Account{Mint: mint, Owner: owner})
	if err != nil {
		return err
	}
	if err := ctx.CreateAccount(payer, addr, ProgramID, AccountSize, buf); err != nil {
		return xerrors.Errorf("couldn't create token account: %w", err)
	}
	return nil
}

// MintTo issues amount new tokens of mint into destination. The
// capability must sign for the mint authority.
func (m *Module) MintTo(ctx *ledger.Context, mint, destination address.Address, authority address.Signer,
	amount uint64) error {
	mi, err := LoadMint(ctx.Txn, mint)
	if err != nil {
		return err
	}
	if mi.MintAuthority.IsZero() {
		return xerrors.Errorf("mint %s: %w", mint, ErrFixedSupply)
	}
	if err := ctx.CheckSigner(authority, mi.MintAuthority); err != nil {
		return err
	}
	dst, err := LoadAccount(ctx.Txn, destination)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return xerrors.Errorf("%s: %w", destination, ErrMintMismatch)
	}
	if mi.Supply+amount < mi.Supply || dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	mi.Supply += amount
	dst.Amount += amount
	if err := store(ctx.Txn, mint, mi); err != nil {
		return err
	}
	return store(ctx.Txn, destination, dst)
}

// Transfer moves amount tokens between two accounts of the same mint. The
// owner of the source must have signed the transaction.
func (m *Module) Transfer(ctx *ledger.Context, source, destination, owner address.Address, amount uint64) error {
	if err := ctx.RequireSigner(owner); err != nil {
		return err
	}
	src, err := LoadAccount(ctx.Txn, source)
	if err != nil {
		return err
	}
	dst, err := LoadAccount(ctx.Txn, destination)
	if err != nil {
		return err
	}
	if src.Owner != owner {
		return xerrors.Errorf("%s: %w", source, ErrOwnerMismatch)
	}
	if src.Mint != dst.Mint {
		return xerrors.Errorf("%s: %w", destination, ErrMintMismatch)
	}
	if src.Amount < amount {
		return xerrors.Errorf("%s holds %d: %w", source, src.Amount, ErrInsufficientFunds)
	}
	if source == destination {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := store(ctx.Txn, source, src); err != nil {
		return err
	}
	return store(ctx.Txn, destination, dst)
}

// SetAuthority hands an authority of mint over to next. The capability
// must sign for the current authority.
func (m *Module) SetAuthority(ctx *ledger.Context, mint address.Address, current address.Signer,
	kind AuthorityType, next address.Address) error {
	mi, err := LoadMint(ctx.Txn, mint)
	if err != nil {
		return err
	}
	switch kind {
	case MintTokens:
		if mi.MintAuthority.IsZero() {
			return ErrFixedSupply
		}
		if err := ctx.CheckSigner(current, mi.MintAuthority); err != nil {
			return err
		}
		mi.MintAuthority = next
	case FreezeAccount:
		if err := ctx.CheckSigner(current, mi.FreezeAuthority); err != nil {
			return err
		}
		mi.FreezeAuthority = next
	default:
		return xerrors.Errorf("unknown authority type %d", kind)
	}
	return store(ctx.Txn, mint, mi)
}

// Execute implements ledger.Program for the commands users send directly.
func (m *Module) Execute(ctx *ledger.Context, inst ledger.Instruction) error {
	switch inst.Command {
	case "transfer":
		source, err := inst.ArgAddress("source")
		if err != nil {
			return err
		}
		destination, err := inst.ArgAddress("destination")
		if err != nil {
			return err
		}
		amount, err := inst.ArgUint64("amount")
		if err != nil {
			return err
		}
		return m.Transfer(ctx, source, destination, ctx.Payer(), amount)
	case "create_associated":
		wallet, err := inst.ArgAddress("wallet")
		if err != nil {
			return err
		}
		mint, err := inst.ArgAddress("mint")
		if err != nil {
			return err
		}
		_, err = m.CreateAssociatedAccount(ctx, ctx.Payer(), wallet, mint)
		return err
	}
	return xerrors.Errorf("token: %s: %w", inst.Command, ledger.ErrUnknownCommand)
}

// Balance returns the amount held by a committed token account.
func Balance(st state.Store, addr address.Address) (uint64, error) {
	acct, err := LoadAccount(state.NewTxn(st), addr)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}
