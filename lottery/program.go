// Package lottery is the token lottery program. It keeps one configuration
// record, mints the collection that anchors every ticket, sells tickets as
// one-unit tokens of that collection, draws a winner from a randomness
// feed and pays the pot out to the holder of the winning ticket.
//
// The program owns no key. It acts through addresses derived from its
// identity, handing the token and metadata modules an address.Signer for
// each of them.
package lottery

import (
	"strconv"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/randomness"
	"github.com/dedis/tokenlottery/state"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ProgramID is the identity every lottery address is derived from.
var ProgramID = address.MustFromString("F3q1icFeEeJcV11jadU3DnFvmNPUqBxg2cpuSjxGMfGQ")

const (
	// Name is the collection name and the prefix of every ticket name.
	Name = "Token Lottery Ticket #"
	// Symbol is the token symbol of the collection and its tickets.
	Symbol = "TLT"
	// URI points to the off-ledger metadata document.
	URI = "https://raw.githubusercontent.com/nick-720/token-lottery/refs/heads/main/token-metadata.json"

	SeedConfig          = "token_lottery"
	SeedCollectionMint  = "collection_mint"
	SeedCollectionToken = "collection_associated_token"
)

// TokenModule is what the lottery needs from the token program.
type TokenModule interface {
	InitializeMint(ctx *ledger.Context, payer address.Address, mint address.Signer,
		decimals uint32, mintAuthority, freezeAuthority address.Address) error
	InitializeAccount(ctx *ledger.Context, payer address.Address, account address.Signer,
		mint, owner address.Address) error
	CreateAssociatedAccount(ctx *ledger.Context, payer, wallet, mint address.Address) (address.Address, error)
	MintTo(ctx *ledger.Context, mint, destination address.Address, authority address.Signer, amount uint64) error
}

// RegistryModule is what the lottery needs from the metadata program.
type RegistryModule interface {
	CreateMetadataAccounts(ctx *ledger.Context, args metadata.CreateMetadataArgs) error
	CreateMasterEdition(ctx *ledger.Context, args metadata.CreateMasterEditionArgs) error
	SignMetadata(ctx *ledger.Context, md address.Address, creator address.Signer) error
	SetAndVerifySizedCollectionItem(ctx *ledger.Context, args metadata.VerifyCollectionArgs) error
}

// RandomnessModule reads randomness feeds.
type RandomnessModule interface {
	Load(txn *state.Txn, feed address.Address) (*randomness.Feed, error)
}

// Program is the lottery program.
type Program struct {
	tokens     TokenModule
	registry   RegistryModule
	randomness RandomnessModule
}

// New returns the lottery program calling into the given modules.
func New(tokens TokenModule, registry RegistryModule, rnd RandomnessModule) *Program {
	return &Program{tokens: tokens, registry: registry, randomness: rnd}
}

// ID implements ledger.Program.
func (p *Program) ID() address.Address {
	return ProgramID
}

// ConfigAddress is where the configuration record lives.
func ConfigAddress() (address.Address, uint8, error) {
	return address.FindProgramAddress([][]byte{[]byte(SeedConfig)}, ProgramID)
}

// CollectionMintAddress is the collection mint.
func CollectionMintAddress() (address.Address, error) {
	a, _, err := address.FindProgramAddress([][]byte{[]byte(SeedCollectionMint)}, ProgramID)
	return a, err
}

// CollectionTokenAddress is the account holding the collection unit.
func CollectionTokenAddress() (address.Address, error) {
	a, _, err := address.FindProgramAddress([][]byte{[]byte(SeedCollectionToken)}, ProgramID)
	return a, err
}

// TicketMintAddress is the mint of ticket number n.
func TicketMintAddress(n uint64) (address.Address, error) {
	a, _, err := address.FindProgramAddress([][]byte{ticketSeed(n)}, ProgramID)
	return a, err
}

// TicketName is the metadata name of ticket number n.
func TicketName(n uint64) string {
	return Name + strconv.FormatUint(n, 10)
}

// LoadConfig reads the committed configuration record.
func LoadConfig(store state.Store) (*TokenLottery, error) {
	return loadConfig(state.NewTxn(store))
}

func loadConfig(txn *state.Txn) (*TokenLottery, error) {
	addr, _, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	acct, err := txn.Get(addr)
	if err != nil {
		return nil, xerrors.Errorf("lottery config: %w", err)
	}
	if acct.Owner != ProgramID {
		return nil, xerrors.Errorf("config owned by %s: %w", acct.Owner, ErrInvalidConfig)
	}
	return DecodeTokenLottery(acct.Data)
}

func saveConfig(txn *state.Txn, tl *TokenLottery) error {
	addr, _, err := ConfigAddress()
	if err != nil {
		return err
	}
	return txn.SetData(addr, tl.Encode())
}

// InitializeConfig creates the configuration record with the payer as
// its authority. It fails with ErrDuplicateInitialization if the record
// already exists.
func (p *Program) InitializeConfig(ctx *ledger.Context, start, end, price uint64) (*TokenLottery, error) {
	requester := ctx.Payer()
	if err := ctx.RequireSigner(requester); err != nil {
		return nil, err
	}
	if start >= end {
		return nil, xerrors.Errorf("start %d, end %d: %w", start, end, ErrInvalidWindow)
	}
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	addr, bump, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	exists, err := ctx.Txn.Exists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &DuplicateInitializationError{Kind: "lottery config", Address: addr}
	}

	tl := &TokenLottery{
		Bump:        bump,
		Start:       start,
		End:         end,
		TicketPrice: price,
		Authority:   requester,
	}
	if err := ctx.CreateAccount(requester, addr, ProgramID, Space, tl.Encode()); err != nil {
		return nil, xerrors.Errorf("couldn't create config: %w", err)
	}
	log.Lvlf2("lottery: config %s for slots [%d, %d], price %d", addr, start, end, price)
	return tl, nil
}

// InitializeLottery creates the collection: a self-owned mint holding a
// single unit, its metadata, its master edition and the verified creator
// entry. Every step signs with the collection mint's derived address; any
// failure fails the whole call.
func (p *Program) InitializeLottery(ctx *ledger.Context) error {
	requester := ctx.Payer()
	if err := ctx.RequireSigner(requester); err != nil {
		return err
	}
	collection, err := address.FindSigner(ProgramID, []byte(SeedCollectionMint))
	if err != nil {
		return err
	}
	holding, err := address.FindSigner(ProgramID, []byte(SeedCollectionToken))
	if err != nil {
		return err
	}
	mint := collection.Address()
	exists, err := ctx.Txn.Exists(mint)
	if err != nil {
		return err
	}
	if exists {
		return &DuplicateInitializationError{Kind: "collection mint", Address: mint}
	}
	md, err := metadata.MetadataAddress(mint)
	if err != nil {
		return err
	}
	edition, err := metadata.EditionAddress(mint)
	if err != nil {
		return err
	}

	if err := p.tokens.InitializeMint(ctx, requester, collection, 0, mint, mint); err != nil {
		return tokenError("create collection mint", err)
	}
	if err := p.tokens.InitializeAccount(ctx, requester, holding, mint, mint); err != nil {
		return tokenError("create collection token account", err)
	}

	log.Lvl2("lottery: minting the collection unit")
	if err := p.tokens.MintTo(ctx, mint, holding.Address(), collection, 1); err != nil {
		return tokenError("mint collection", err)
	}

	log.Lvl2("lottery: creating collection metadata")
	err = p.registry.CreateMetadataAccounts(ctx, metadata.CreateMetadataArgs{
		Metadata:                md,
		Mint:                    mint,
		MintAuthority:           collection,
		Payer:                   requester,
		UpdateAuthority:         collection,
		UpdateAuthorityIsSigner: true,
		Data: metadata.DataV2{
			Name:   Name,
			Symbol: Symbol,
			URI:    URI,
			Creators: []metadata.Creator{{
				Address: mint,
				Share:   100,
			}},
		},
		IsMutable:         true,
		CollectionDetails: &metadata.CollectionDetails{Size: 0},
	})
	if err != nil {
		return registryError("create metadata", err)
	}

	log.Lvl2("lottery: creating master edition")
	err = p.registry.CreateMasterEdition(ctx, metadata.CreateMasterEditionArgs{
		Edition:         edition,
		Mint:            mint,
		UpdateAuthority: collection,
		MintAuthority:   collection,
		Payer:           requester,
		Metadata:        md,
		MaxSupply:       0,
		HasMaxSupply:    true,
	})
	if err != nil {
		return registryError("create master edition", err)
	}

	log.Lvl2("lottery: verifying collection")
	if err := p.registry.SignMetadata(ctx, md, collection); err != nil {
		return registryError("sign metadata", err)
	}
	return nil
}

// Execute implements ledger.Program.
func (p *Program) Execute(ctx *ledger.Context, inst ledger.Instruction) error {
	switch inst.Command {
	case "initialize_config":
		start, err := inst.ArgUint64("start")
		if err != nil {
			return err
		}
		end, err := inst.ArgUint64("end")
		if err != nil {
			return err
		}
		price, err := inst.ArgUint64("price")
		if err != nil {
			return err
		}
		_, err = p.InitializeConfig(ctx, start, end, price)
		return err
	case "initialize_lottery":
		return p.InitializeLottery(ctx)
	case "buy_ticket":
		_, err := p.BuyTicket(ctx)
		return err
	case "commit_randomness":
		feed, err := inst.ArgAddress("randomness")
		if err != nil {
			return err
		}
		return p.CommitRandomness(ctx, feed)
	case "reveal_winner":
		feed, err := inst.ArgAddress("randomness")
		if err != nil {
			return err
		}
		return p.RevealWinner(ctx, feed)
	case "claim_winnings":
		return p.ClaimWinnings(ctx)
	}
	return xerrors.Errorf("lottery: %s: %w", inst.Command, ledger.ErrUnknownCommand)
}
