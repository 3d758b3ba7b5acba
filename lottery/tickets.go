package lottery

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/metadata"
	"github.com/dedis/tokenlottery/token"
	"github.com/dedis/tokenlottery/utils"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func ticketSeed(n uint64) []byte {
	return utils.Uint64ToBytes(n)
}

// BuyTicket sells the next ticket to the payer. The price goes to the pot
// held by the config account; the ticket is a one-unit token minted to
// the payer's associated account and verified as an item of the
// collection. It returns the ticket number.
func (p *Program) BuyTicket(ctx *ledger.Context) (uint64, error) {
	buyer := ctx.Payer()
	if err := ctx.RequireSigner(buyer); err != nil {
		return 0, err
	}
	tl, err := loadConfig(ctx.Txn)
	if err != nil {
		return 0, err
	}
	if ctx.Clock.Slot < tl.Start || ctx.Clock.Slot > tl.End {
		return 0, xerrors.Errorf("slot %d outside [%d, %d]: %w", ctx.Clock.Slot, tl.Start, tl.End, ErrLotteryNotOpen)
	}
	configAddr, _, err := ConfigAddress()
	if err != nil {
		return 0, err
	}
	if err := ctx.Txn.Transfer(buyer, configAddr, tl.TicketPrice); err != nil {
		return 0, xerrors.Errorf("couldn't pay ticket: %w", err)
	}
	if tl.Pot+tl.TicketPrice < tl.Pot {
		return 0, xerrors.New("pot overflow")
	}
	tl.Pot += tl.TicketPrice

	n := tl.TotalTickets
	ticket, err := address.FindSigner(ProgramID, ticketSeed(n))
	if err != nil {
		return 0, err
	}
	collection, err := address.FindSigner(ProgramID, []byte(SeedCollectionMint))
	if err != nil {
		return 0, err
	}
	coll := collection.Address()
	mint := ticket.Address()

	if err := p.tokens.InitializeMint(ctx, buyer, ticket, 0, coll, coll); err != nil {
		return 0, tokenError("create ticket mint", err)
	}
	dest, err := p.tokens.CreateAssociatedAccount(ctx, buyer, buyer, mint)
	if err != nil {
		return 0, tokenError("create ticket account", err)
	}
	if err := p.tokens.MintTo(ctx, mint, dest, collection, 1); err != nil {
		return 0, tokenError("mint ticket", err)
	}

	md, err := metadata.MetadataAddress(mint)
	if err != nil {
		return 0, err
	}
	edition, err := metadata.EditionAddress(mint)
	if err != nil {
		return 0, err
	}
	collMd, err := metadata.MetadataAddress(coll)
	if err != nil {
		return 0, err
	}
	collEdition, err := metadata.EditionAddress(coll)
	if err != nil {
		return 0, err
	}
	err = p.registry.CreateMetadataAccounts(ctx, metadata.CreateMetadataArgs{
		Metadata:                md,
		Mint:                    mint,
		MintAuthority:           collection,
		Payer:                   buyer,
		UpdateAuthority:         collection,
		UpdateAuthorityIsSigner: true,
		Data: metadata.DataV2{
			Name:   TicketName(n),
			Symbol: Symbol,
			URI:    URI,
		},
		IsMutable: true,
	})
	if err != nil {
		return 0, registryError("create ticket metadata", err)
	}
	err = p.registry.CreateMasterEdition(ctx, metadata.CreateMasterEditionArgs{
		Edition:         edition,
		Mint:            mint,
		UpdateAuthority: collection,
		MintAuthority:   collection,
		Payer:           buyer,
		Metadata:        md,
		HasMaxSupply:    true,
	})
	if err != nil {
		return 0, registryError("create ticket master edition", err)
	}
	err = p.registry.SetAndVerifySizedCollectionItem(ctx, metadata.VerifyCollectionArgs{
		Metadata:                md,
		CollectionAuthority:     collection,
		CollectionMint:          coll,
		CollectionMetadata:      collMd,
		CollectionMasterEdition: collEdition,
	})
	if err != nil {
		return 0, registryError("verify ticket", err)
	}

	tl.TotalTickets++
	if err := saveConfig(ctx.Txn, tl); err != nil {
		return 0, err
	}
	log.Lvlf2("lottery: ticket %d sold to %s", n, buyer)
	return n, nil
}

func (p *Program) authority(ctx *ledger.Context) (*TokenLottery, error) {
	tl, err := loadConfig(ctx.Txn)
	if err != nil {
		return nil, err
	}
	if ctx.Payer() != tl.Authority || !ctx.IsSigner(tl.Authority) {
		return nil, xerrors.Errorf("%s: %w", ctx.Payer(), ErrNotAuthorized)
	}
	return tl, nil
}

// CommitRandomness records the feed the draw will use. The feed must have
// been committed in this slot, i.e. to the previous one.
func (p *Program) CommitRandomness(ctx *ledger.Context, feed address.Address) error {
	tl, err := p.authority(ctx)
	if err != nil {
		return err
	}
	f, err := p.randomness.Load(ctx.Txn, feed)
	if err != nil {
		return err
	}
	if !f.Committed || ctx.Clock.Slot == 0 || f.SeedSlot != ctx.Clock.Slot-1 {
		return xerrors.Errorf("feed seeded at %d: %w", f.SeedSlot, ErrRandomnessAlreadyRevealed)
	}
	tl.Randomness = feed
	return saveConfig(ctx.Txn, tl)
}

// RevealWinner draws the winning ticket from the committed feed once the
// lottery is over.
func (p *Program) RevealWinner(ctx *ledger.Context, feed address.Address) error {
	tl, err := p.authority(ctx)
	if err != nil {
		return err
	}
	if feed != tl.Randomness {
		return xerrors.Errorf("%s: %w", feed, ErrIncorrectRandomnessAccount)
	}
	if ctx.Clock.Slot < tl.End {
		return xerrors.Errorf("slot %d before end %d: %w", ctx.Clock.Slot, tl.End, ErrLotteryNotCompleted)
	}
	if tl.WinnerChosen {
		return ErrWinnerChosen
	}
	f, err := p.randomness.Load(ctx.Txn, feed)
	if err != nil {
		return err
	}
	value, err := f.Resolved(ctx.Clock)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrRandomnessNotResolved)
	}
	if tl.TotalTickets == 0 {
		return ErrNoTickets
	}
	tl.Winner = uint64(value[0]) % tl.TotalTickets
	tl.WinnerChosen = true
	log.Lvlf2("lottery: ticket %d wins %d", tl.Winner, tl.Pot)
	return saveConfig(ctx.Txn, tl)
}

// ClaimWinnings pays the pot to the payer if they hold the winning ticket.
func (p *Program) ClaimWinnings(ctx *ledger.Context) error {
	claimer := ctx.Payer()
	if err := ctx.RequireSigner(claimer); err != nil {
		return err
	}
	tl, err := loadConfig(ctx.Txn)
	if err != nil {
		return err
	}
	if !tl.WinnerChosen {
		return ErrWinnerNotChosen
	}
	coll, err := CollectionMintAddress()
	if err != nil {
		return err
	}
	mint, err := TicketMintAddress(tl.Winner)
	if err != nil {
		return err
	}
	mdAddr, err := metadata.MetadataAddress(mint)
	if err != nil {
		return err
	}
	md, err := metadata.Load(ctx.Txn, mdAddr)
	if err != nil {
		return err
	}
	if md.Data.Collection == nil || !md.Data.Collection.Verified || md.Data.Collection.Key != coll {
		return ErrNotVerified
	}
	if md.Name() != TicketName(tl.Winner) {
		return xerrors.Errorf("%q: %w", md.Name(), ErrIncorrectTicket)
	}
	ata, err := token.AssociatedAddress(claimer, mint)
	if err != nil {
		return err
	}
	held, err := token.LoadAccount(ctx.Txn, ata)
	if err != nil || held.Amount == 0 {
		return xerrors.Errorf("%s: %w", claimer, ErrNoTicket)
	}

	configAddr, _, err := ConfigAddress()
	if err != nil {
		return err
	}
	if err := ctx.Txn.Transfer(configAddr, claimer, tl.Pot); err != nil {
		return xerrors.Errorf("couldn't pay out: %w", err)
	}
	log.Lvlf2("lottery: %s claimed %d", claimer, tl.Pot)
	tl.Pot = 0
	return saveConfig(ctx.Txn, tl)
}
