// Command client drives a token lottery on a local, file-backed ledger.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/ledger"
	"github.com/dedis/tokenlottery/lottery"
	"github.com/dedis/tokenlottery/randomness"
	"github.com/dedis/tokenlottery/state"
	"github.com/dedis/tokenlottery/token"
	"github.com/dedis/tokenlottery/utils"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Value: "tokenlottery.toml",
		Usage: "client configuration file",
	}
	debugFlag = cli.IntFlag{
		Name:  "debug, d",
		Value: 0,
		Usage: "debug level",
	}
	feedFlag = cli.StringFlag{
		Name:  "feed",
		Usage: "address of the randomness feed",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "tokenlottery"
	app.Usage = "run a token lottery on a local ledger"
	app.Flags = []cli.Flag{configFlag, debugFlag}
	app.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt("debug"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "keygen",
			Usage:  "write a new configuration with a fresh key",
			Flags:  []cli.Flag{cli.StringFlag{Name: "db", Value: "tokenlottery.db", Usage: "ledger database"}},
			Action: keygen,
		},
		{
			Name:   "airdrop",
			Usage:  "credit lamports to an address, ours by default",
			Flags:  []cli.Flag{cli.Uint64Flag{Name: "lamports", Value: 1e10}, cli.StringFlag{Name: "to"}},
			Action: withEnv(airdrop),
		},
		{
			Name:  "init-config",
			Usage: "create the lottery configuration",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "start", Usage: "first slot tickets are sold"},
				cli.Uint64Flag{Name: "end", Usage: "last slot tickets are sold"},
				cli.Uint64Flag{Name: "price", Usage: "ticket price in lamports"},
			},
			Action: withEnv(initConfig),
		},
		{
			Name:   "init-lottery",
			Usage:  "create the ticket collection",
			Action: withEnv(lotteryCommand("initialize_lottery")),
		},
		{
			Name:   "buy-ticket",
			Usage:  "buy the next ticket",
			Action: withEnv(lotteryCommand("buy_ticket")),
		},
		{
			Name:  "randomness",
			Usage: "manage a randomness feed",
			Subcommands: []cli.Command{
				{
					Name:   "create",
					Flags:  []cli.Flag{cli.Uint64Flag{Name: "nonce"}},
					Action: withEnv(feedCreate),
				},
				{
					Name:   "commit",
					Flags:  []cli.Flag{feedFlag},
					Action: withEnv(feedCommit),
				},
				{
					Name: "reveal",
					Flags: []cli.Flag{feedFlag,
						cli.StringFlag{Name: "value", Usage: "hex value, random if empty"}},
					Action: withEnv(feedReveal),
				},
			},
		},
		{
			Name:   "commit-randomness",
			Usage:  "commit a feed and bind it to the lottery",
			Flags:  []cli.Flag{feedFlag},
			Action: withEnv(commitRandomness),
		},
		{
			Name:  "reveal-winner",
			Usage: "reveal the feed and draw the winning ticket",
			Flags: []cli.Flag{feedFlag,
				cli.StringFlag{Name: "value", Usage: "hex value, random if empty"}},
			Action: withEnv(revealWinner),
		},
		{
			Name:   "claim",
			Usage:  "claim the pot with the winning ticket",
			Action: withEnv(lotteryCommand("claim_winnings")),
		},
		{
			Name:  "transfer",
			Usage: "move tokens between two token accounts",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "source"},
				cli.StringFlag{Name: "destination"},
				cli.Uint64Flag{Name: "amount", Value: 1},
			},
			Action: withEnv(transfer),
		},
		{
			Name:   "show",
			Usage:  "print the lottery state",
			Flags:  []cli.Flag{cli.BoolFlag{Name: "accounts", Usage: "list every account"}},
			Action: withEnv(show),
		},
		{
			Name:   "slot",
			Usage:  "print the current slot",
			Action: withEnv(printSlot),
			Subcommands: []cli.Command{
				{
					Name:   "advance",
					Flags:  []cli.Flag{cli.Uint64Flag{Name: "n", Value: 1}},
					Action: withEnv(advance),
				},
			},
		},
	}
	log.ErrFatal(app.Run(os.Args))
}

func withEnv(fn func(c *cli.Context, e *env) error) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, err := LoadConfig(c.GlobalString("config"))
		if err != nil {
			return err
		}
		e, err := openEnv(cfg)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

func keygen(c *cli.Context) error {
	cfg, err := NewConfig(c.String("db"))
	if err != nil {
		return err
	}
	if err := cfg.Save(c.GlobalString("config")); err != nil {
		return err
	}
	self, err := cfg.Address()
	if err != nil {
		return err
	}
	fmt.Println(self)
	return nil
}

func parseAddress(c *cli.Context, name string) (address.Address, error) {
	s := c.String(name)
	if s == "" {
		return address.Zero, xerrors.Errorf("missing --%s", name)
	}
	return address.FromString(s)
}

func parseValue(c *cli.Context) ([]byte, error) {
	if s := c.String("value"); s != "" {
		return hex.DecodeString(s)
	}
	return random.Bits(randomness.ValueSize*8, false, random.New()), nil
}

func airdrop(c *cli.Context, e *env) error {
	to := e.self
	if c.String("to") != "" {
		var err error
		to, err = parseAddress(c, "to")
		if err != nil {
			return err
		}
	}
	if err := e.ledger.Airdrop(to, c.Uint64("lamports")); err != nil {
		return err
	}
	acct, err := e.ledger.Account(to)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d lamports\n", to, acct.Lamports)
	return nil
}

func initConfig(c *cli.Context, e *env) error {
	return e.send(ledger.NewInstruction(lottery.ProgramID, "initialize_config",
		ledger.Argument{Name: "start", Value: utils.Uint64ToBytes(c.Uint64("start"))},
		ledger.Argument{Name: "end", Value: utils.Uint64ToBytes(c.Uint64("end"))},
		ledger.Argument{Name: "price", Value: utils.Uint64ToBytes(c.Uint64("price"))},
	))
}

func lotteryCommand(cmd string) func(c *cli.Context, e *env) error {
	return func(c *cli.Context, e *env) error {
		return e.send(ledger.NewInstruction(lottery.ProgramID, cmd))
	}
}

func feedArg(feed address.Address) ledger.Argument {
	return ledger.Argument{Name: "feed", Value: feed.Bytes()}
}

func feedCreate(c *cli.Context, e *env) error {
	nonce := c.Uint64("nonce")
	feed, err := randomness.FeedAddress(e.self, nonce)
	if err != nil {
		return err
	}
	err = e.send(ledger.NewInstruction(randomness.ProgramID, "create",
		ledger.Argument{Name: "nonce", Value: utils.Uint64ToBytes(nonce)}))
	if err != nil {
		return err
	}
	fmt.Println(feed)
	return nil
}

func feedCommit(c *cli.Context, e *env) error {
	feed, err := parseAddress(c, "feed")
	if err != nil {
		return err
	}
	return e.send(ledger.NewInstruction(randomness.ProgramID, "commit", feedArg(feed)))
}

func feedReveal(c *cli.Context, e *env) error {
	feed, err := parseAddress(c, "feed")
	if err != nil {
		return err
	}
	value, err := parseValue(c)
	if err != nil {
		return err
	}
	return e.send(ledger.NewInstruction(randomness.ProgramID, "reveal", feedArg(feed),
		ledger.Argument{Name: "value", Value: value}))
}

func commitRandomness(c *cli.Context, e *env) error {
	feed, err := parseAddress(c, "feed")
	if err != nil {
		return err
	}
	return e.send(
		ledger.NewInstruction(randomness.ProgramID, "commit", feedArg(feed)),
		ledger.NewInstruction(lottery.ProgramID, "commit_randomness",
			ledger.Argument{Name: "randomness", Value: feed.Bytes()}),
	)
}

func revealWinner(c *cli.Context, e *env) error {
	feed, err := parseAddress(c, "feed")
	if err != nil {
		return err
	}
	value, err := parseValue(c)
	if err != nil {
		return err
	}
	err = e.send(
		ledger.NewInstruction(randomness.ProgramID, "reveal", feedArg(feed),
			ledger.Argument{Name: "value", Value: value}),
		ledger.NewInstruction(lottery.ProgramID, "reveal_winner",
			ledger.Argument{Name: "randomness", Value: feed.Bytes()}),
	)
	if err != nil {
		return err
	}
	tl, err := lottery.LoadConfig(e.store)
	if err != nil {
		return err
	}
	fmt.Printf("winning ticket: %d\n", tl.Winner)
	return nil
}

func transfer(c *cli.Context, e *env) error {
	source, err := parseAddress(c, "source")
	if err != nil {
		return err
	}
	destination, err := parseAddress(c, "destination")
	if err != nil {
		return err
	}
	return e.send(ledger.NewInstruction(token.ProgramID, "transfer",
		ledger.Argument{Name: "source", Value: source.Bytes()},
		ledger.Argument{Name: "destination", Value: destination.Bytes()},
		ledger.Argument{Name: "amount", Value: utils.Uint64ToBytes(c.Uint64("amount"))},
	))
}

func show(c *cli.Context, e *env) error {
	fmt.Printf("slot: %d\n", e.clock.Now().Slot)
	fmt.Printf("key: %s\n", e.self)
	tl, err := lottery.LoadConfig(e.store)
	switch {
	case xerrors.Is(err, state.ErrAccountNotFound):
		fmt.Println("lottery: not initialized")
	case err != nil:
		return err
	default:
		fmt.Printf("lottery: slots [%d, %d], price %d, authority %s\n",
			tl.Start, tl.End, tl.TicketPrice, tl.Authority)
		fmt.Printf("tickets: %d, pot: %d\n", tl.TotalTickets, tl.Pot)
		if tl.WinnerChosen {
			fmt.Printf("winner: ticket %d\n", tl.Winner)
		}
	}
	if !c.Bool("accounts") {
		return nil
	}
	return e.store.ForEach(func(addr address.Address, acct *state.Account) error {
		fmt.Printf("%s owner=%s lamports=%d space=%d\n", addr, acct.Owner, acct.Lamports, len(acct.Data))
		return nil
	})
}

func printSlot(c *cli.Context, e *env) error {
	fmt.Println(e.clock.Now().Slot)
	return nil
}

func advance(c *cli.Context, e *env) error {
	slot, err := e.advance(c.Uint64("n"))
	if err != nil {
		return err
	}
	fmt.Println(slot)
	return nil
}
