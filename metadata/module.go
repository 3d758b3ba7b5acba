package metadata

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/token"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

var (
	ErrInvalidAddress  = xerrors.New("record address does not match the mint")
	ErrAlreadyVerified = xerrors.New("already verified")
)

// Tokens is what the registry needs from the token program.
type Tokens interface {
	SetAuthority(ctx *ledger.Context, mint address.Address, current address.Signer,
		kind token.AuthorityType, next address.Address) error
}

// Module is the metadata registry program.
type Module struct {
	tokens Tokens
}

// New returns the registry, using tokens to take over mint authorities.
func New(tokens Tokens) *Module {
	return &Module{tokens: tokens}
}

// ID implements ledger.Program.
func (m *Module) ID() address.Address {
	return ProgramID
}

// CreateMetadataArgs are the accounts and data of CreateMetadataAccounts.
type CreateMetadataArgs struct {
	Metadata        address.Address
	Mint            address.Address
	MintAuthority   address.Signer
	Payer           address.Address
	UpdateAuthority address.Signer
	// UpdateAuthorityIsSigner requires the update authority proof as well.
	UpdateAuthorityIsSigner bool
	Data                    DataV2
	IsMutable               bool
	CollectionDetails       *CollectionDetails
}

// CreateMetadataAccounts creates the metadata record of a mint. The mint
// authority must sign; the update authority may later change the record
// and verify collection items.
func (m *Module) CreateMetadataAccounts(ctx *ledger.Context, args CreateMetadataArgs) error {
	expected, err := MetadataAddress(args.Mint)
	if err != nil {
		return err
	}
	if expected != args.Metadata {
		return xerrors.Errorf("metadata %s: %w", args.Metadata, ErrInvalidAddress)
	}
	mint, err := token.LoadMint(ctx.Txn, args.Mint)
	if err != nil {
		return err
	}
	if err := ctx.CheckSigner(args.MintAuthority, mint.MintAuthority); err != nil {
		return xerrors.Errorf("mint authority: %w", err)
	}
	if args.UpdateAuthorityIsSigner {
		if err := ctx.CheckSigner(args.UpdateAuthority, args.UpdateAuthority.Address()); err != nil {
			return xerrors.Errorf("update authority: %w", err)
		}
	}
	if err := validate(&args.Data); err != nil {
		return err
	}

	data := args.Data
	data.Name = pad(data.Name, MaxNameLength)
	data.Symbol = pad(data.Symbol, MaxSymbolLength)
	data.URI = pad(data.URI, MaxURILength)
	buf, err := encode(&Metadata{
		UpdateAuthority:   args.UpdateAuthority.Address(),
		Mint:              args.Mint,
		Data:              data,
		IsMutable:         args.IsMutable,
		CollectionDetails: args.CollectionDetails,
	})
	if err != nil {
		return err
	}
	if err := ctx.CreateAccount(args.Payer, args.Metadata, ProgramID, MetadataSize, buf); err != nil {
		return xerrors.Errorf("couldn't create metadata: %w", err)
	}
	log.Lvlf3("metadata: %q for mint %s", trim(data.Name), args.Mint)
	return nil
}

func validate(data *DataV2) error {
	if len(data.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(data.Symbol) > MaxSymbolLength {
		return ErrSymbolTooLong
	}
	if len(data.URI) > MaxURILength {
		return ErrURITooLong
	}
	if data.SellerFeeBasisPoints > MaxBasisPoints {
		return ErrInvalidBasisPoints
	}
	if len(data.Creators) > MaxCreators {
		return ErrTooManyCreators
	}
	if len(data.Creators) > 0 {
		var total uint32
		for _, c := range data.Creators {
			if c.Verified {
				return xerrors.Errorf("creator %s: %w", c.Address, ErrCannotPreVerify)
			}
			total += c.Share
		}
		if total != 100 {
			return ErrInvalidShares
		}
	}
	if data.Collection != nil && data.Collection.Verified {
		return xerrors.Errorf("collection: %w", ErrCannotPreVerify)
	}
	return nil
}

// CreateMasterEditionArgs are the accounts of CreateMasterEdition.
type CreateMasterEditionArgs struct {
	Edition         address.Address
	Mint            address.Address
	UpdateAuthority address.Signer
	MintAuthority   address.Signer
	Payer           address.Address
	Metadata        address.Address
	MaxSupply       uint64
	HasMaxSupply    bool
}

// CreateMasterEdition turns a one-unit, zero-decimal mint into a master
// edition. The mint and freeze authorities pass to the edition record, so
// no further unit can ever be minted.
func (m *Module) CreateMasterEdition(ctx *ledger.Context, args CreateMasterEditionArgs) error {
	expected, err := EditionAddress(args.Mint)
	if err != nil {
		return err
	}
	if expected != args.Edition {
		return xerrors.Errorf("edition %s: %w", args.Edition, ErrInvalidAddress)
	}
	md, err := Load(ctx.Txn, args.Metadata)
	if err != nil {
		return err
	}
	if md.Mint != args.Mint {
		return xerrors.Errorf("%s: %w", args.Metadata, ErrMintMismatch)
	}
	if err := ctx.CheckSigner(args.UpdateAuthority, md.UpdateAuthority); err != nil {
		return xerrors.Errorf("update authority: %w", err)
	}
	mint, err := token.LoadMint(ctx.Txn, args.Mint)
	if err != nil {
		return err
	}
	if err := ctx.CheckSigner(args.MintAuthority, mint.MintAuthority); err != nil {
		return xerrors.Errorf("mint authority: %w", err)
	}
	if mint.Decimals != 0 || mint.Supply != 1 {
		return xerrors.Errorf("decimals %d, supply %d: %w", mint.Decimals, mint.Supply, ErrNotMasterEdition)
	}

	buf, err := encode(&MasterEdition{MaxSupply: args.MaxSupply, HasMaxSupply: args.HasMaxSupply})
	if err != nil {
		return err
	}
	if err := ctx.CreateAccount(args.Payer, args.Edition, ProgramID, MasterEditionSize, buf); err != nil {
		return xerrors.Errorf("couldn't create master edition: %w", err)
	}
	if err := m.tokens.SetAuthority(ctx, args.Mint, args.MintAuthority, token.MintTokens, args.Edition); err != nil {
		return err
	}
	if !mint.FreezeAuthority.IsZero() {
		if err := m.tokens.SetAuthority(ctx, args.Mint, args.MintAuthority, token.FreezeAccount, args.Edition); err != nil {
			return err
		}
	}
	return nil
}

// SignMetadata marks the creator signing through the capability as
// verified.
func (m *Module) SignMetadata(ctx *ledger.Context, metadata address.Address, creator address.Signer) error {
	if err := ctx.CheckSigner(creator, creator.Address()); err != nil {
		return err
	}
	return m.sign(ctx, metadata, creator.Address())
}

func (m *Module) sign(ctx *ledger.Context, metadata, creator address.Address) error {
	md, err := Load(ctx.Txn, metadata)
	if err != nil {
		return err
	}
	for i := range md.Data.Creators {
		if md.Data.Creators[i].Address == creator {
			md.Data.Creators[i].Verified = true
			return store(ctx.Txn, metadata, md)
		}
	}
	return xerrors.Errorf("%s: %w", creator, ErrCreatorNotFound)
}

// VerifyCollectionArgs are the accounts of SetAndVerifySizedCollectionItem.
type VerifyCollectionArgs struct {
	Metadata                address.Address
	CollectionAuthority     address.Signer
	CollectionMint          address.Address
	CollectionMetadata      address.Address
	CollectionMasterEdition address.Address
}

// SetAndVerifySizedCollectionItem puts an item into a sized collection as
// a verified member and counts it.
func (m *Module) SetAndVerifySizedCollectionItem(ctx *ledger.Context, args VerifyCollectionArgs) error {
	item, err := Load(ctx.Txn, args.Metadata)
	if err != nil {
		return err
	}
	if !item.IsMutable {
		return xerrors.Errorf("%s: %w", args.Metadata, ErrImmutable)
	}
	parent, err := Load(ctx.Txn, args.CollectionMetadata)
	if err != nil {
		return err
	}
	if parent.Mint != args.CollectionMint {
		return xerrors.Errorf("%s: %w", args.CollectionMetadata, ErrMintMismatch)
	}
	if parent.CollectionDetails == nil {
		return ErrNotSizedCollection
	}
	expected, err := EditionAddress(args.CollectionMint)
	if err != nil {
		return err
	}
	if expected != args.CollectionMasterEdition {
		return xerrors.Errorf("edition %s: %w", args.CollectionMasterEdition, ErrInvalidAddress)
	}
	if _, err := LoadEdition(ctx.Txn, args.CollectionMasterEdition); err != nil {
		return err
	}
	if err := ctx.CheckSigner(args.CollectionAuthority, parent.UpdateAuthority); err != nil {
		return xerrors.Errorf("collection authority: %w", err)
	}
	if item.Data.Collection != nil && item.Data.Collection.Verified {
		return xerrors.Errorf("%s: %w", args.Metadata, ErrAlreadyVerified)
	}

	item.Data.Collection = &Collection{Verified: true, Key: args.CollectionMint}
	parent.CollectionDetails.Size++
	if err := store(ctx.Txn, args.Metadata, item); err != nil {
		return err
	}
	return store(ctx.Txn, args.CollectionMetadata, parent)
}

// Execute implements ledger.Program. Key creators verify themselves with
// "sign_metadata".
func (m *Module) Execute(ctx *ledger.Context, inst ledger.Instruction) error {
	switch inst.Command {
	case "sign_metadata":
		md, err := inst.ArgAddress("metadata")
		if err != nil {
			return err
		}
		return m.sign(ctx, md, ctx.Payer())
	}
	return xerrors.Errorf("metadata: %s: %w", inst.Command, ledger.ErrUnknownCommand)
}
