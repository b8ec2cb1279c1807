package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cl "tycoon/internal/cli"
	"tycoon/internal/config"
	"tycoon/internal/game"
	"tycoon/internal/syncq"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type app struct {
	apiBase string
	queue   *syncq.Queue
	dataDir string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	a := &app{
		apiBase: cfg.APIBaseURL,
		queue:   syncq.New(cfg.QueuePath),
		dataDir: filepath.Dir(cfg.QueuePath),
	}

	root := &cobra.Command{
		Use:          "tyc",
		Short:        "Tycoon CLI game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")

	root.AddCommand(
		a.newDashCmd(),
		a.newTapCmd(),
		a.newBizCmd(),
		a.newBuyCmd(),
		a.newStocksCmd(),
		a.newCryptoCmd(),
		a.newAssetsCmd(),
		a.newTasksCmd(),
		a.newSaveCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newSyncCmd(),
		a.newWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func (a *app) newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show balance, income and fortune",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			d, err := a.client().Dashboard(ctx)
			if err != nil {
				return err
			}
			renderDashboard(d)
			return nil
		},
	}
}

func (a *app) newTapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tap [times]",
		Short: "Tap for cash; rapid taps build momentum",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			times := int64(1)
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || n < 1 {
					return fmt.Errorf("times must be a positive whole number")
				}
				times = n
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			client := a.client()
			earned := 0.0
			var last cl.TapResult
			for i := int64(0); i < times; i++ {
				res, err := client.Tap(ctx)
				if err != nil {
					if cl.IsRejected(err) && earned > 0 {
						printWarn(err.Error())
						break
					}
					return err
				}
				earned += res.Payout
				last = res
			}
			printSuccess(fmt.Sprintf("Earned $%s", formatMoney(earned)))
			fmt.Printf("Balance: $%s  Momentum: %.0f/%.0f\n", formatMoney(last.State.Balance), last.Momentum, game.MaxMomentum)
			return nil
		},
	}
}

func (a *app) newBizCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "biz",
		Short:   "List businesses, upgrades and collections",
		Aliases: []string{"businesses"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := a.client().State(ctx)
			if err != nil {
				return err
			}
			renderBusinesses(st)
			return nil
		},
	}
}

func (a *app) newBuyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "buy <upgrade|business|collection> <id>",
		Short: "Buy one level, or as many as you can afford with --max",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind string
			switch strings.ToLower(args[0]) {
			case "upgrade", "upgrades":
				kind = "upgrades"
			case "business", "businesses", "biz":
				kind = "businesses"
			case "collection", "collections":
				kind = "collections"
			default:
				return fmt.Errorf("unknown kind %q", args[0])
			}
			return a.mutate(cmd, "Purchased "+args[1]+".", cl.BuyPath(kind, args[1], all), nil)
		},
	}
	cmd.Flags().BoolVar(&all, "max", false, "buy as many levels as the balance allows")
	return cmd
}

func (a *app) newStocksCmd() *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Stock market commands",
		Aliases: []string{"stock"},
	}

	var owned bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := a.client().Stocks(ctx)
			if err != nil {
				return err
			}
			renderStocks(out, owned)
			return nil
		},
	}
	list.Flags().BoolVar(&owned, "owned", false, "only show stocks you hold")

	stocks.AddCommand(
		list,
		a.newStockTradeCmd("buy"),
		a.newStockTradeCmd("sell"),
		&cobra.Command{
			Use:   "liquidate",
			Short: "Sell every share you hold",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.mutate(cmd, "Portfolio liquidated.", "/v1/stocks/liquidate", nil)
			},
		},
		a.newIPOCmd(),
	)
	return stocks
}

func (a *app) newStockTradeCmd(side string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " <ticker> [shares]",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := game.NormalizeTicker(args[0])
			var shares int64
			if len(args) == 2 {
				n, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || n < 1 {
					return fmt.Errorf("shares must be a positive whole number")
				}
				shares = n
			} else {
				n, err := promptInt64("Shares to "+side, 1)
				if err != nil {
					return err
				}
				shares = n
			}
			label := fmt.Sprintf("%s %s %s.", pastTense(side), comma(shares), ticker)
			return a.mutate(cmd, label, cl.TradePath("stocks", ticker, side), map[string]any{"amount": shares})
		},
	}
}

func (a *app) newIPOCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ipo",
		Short: "Take your own company public",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Company name")
			if err != nil {
				return err
			}
			ticker, err := promptTicker("Ticker")
			if err != nil {
				return err
			}
			price, err := promptFloat("Share price", 0)
			if err != nil {
				return err
			}
			supply, err := promptInt64("Share supply", game.IPOMinSupply)
			if err != nil {
				return err
			}
			in := game.IPOInput{Name: name, Ticker: ticker, Price: price, Supply: supply}
			if err := in.Validate(); err != nil {
				return err
			}
			body := map[string]any{"name": in.Name, "ticker": in.Ticker, "price": in.Price, "supply": in.Supply}
			return a.mutate(cmd, ticker+" is now listed.", "/v1/stocks/ipo", body)
		},
	}
}

func (a *app) newCryptoCmd() *cobra.Command {
	crypto := &cobra.Command{
		Use:   "crypto",
		Short: "Crypto commands",
	}
	var owned bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List coins",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := a.client().Crypto(ctx)
			if err != nil {
				return err
			}
			renderCrypto(out, owned)
			return nil
		},
	}
	list.Flags().BoolVar(&owned, "owned", false, "only show coins you hold")
	crypto.AddCommand(list)

	for _, side := range []string{"buy", "sell"} {
		side := side
		crypto.AddCommand(&cobra.Command{
			Use:   side + " <id> [amount]",
			Short: strings.ToUpper(side[:1]) + side[1:] + " a coin in fractional units",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var amount float64
				if len(args) == 2 {
					v, err := strconv.ParseFloat(args[1], 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("amount must be a positive number")
					}
					amount = v
				} else {
					v, err := promptFloat("Amount to "+side, 0)
					if err != nil {
						return err
					}
					amount = v
				}
				label := fmt.Sprintf("%s %g %s.", pastTense(side), amount, args[0])
				return a.mutate(cmd, label, cl.TradePath("crypto", args[0], side), map[string]any{"amount": amount})
			},
		})
	}
	return crypto
}

func (a *app) newAssetsCmd() *cobra.Command {
	assets := &cobra.Command{
		Use:   "assets",
		Short: "Real estate and cars",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := a.client().State(ctx)
			if err != nil {
				return err
			}
			renderAssets(st)
			return nil
		},
	}
	assets.AddCommand(
		&cobra.Command{
			Use:   "estate <id>",
			Short: "Buy a property",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.mutate(cmd, "Bought "+args[0]+".", "/v1/realestate/"+url.PathEscape(args[0])+"/buy", nil)
			},
		},
		&cobra.Command{
			Use:   "car <buy|sell> <id>",
			Short: "Buy or sell a car",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				side := strings.ToLower(args[0])
				if side != "buy" && side != "sell" {
					return fmt.Errorf("car action must be buy or sell")
				}
				return a.mutate(cmd, pastTense(side)+" "+args[1]+".", "/v1/cars/"+url.PathEscape(args[1])+"/"+side, nil)
			},
		},
	)
	return assets
}

func (a *app) newTasksCmd() *cobra.Command {
	tasks := &cobra.Command{
		Use:   "tasks",
		Short: "Show task progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			d, err := a.client().Dashboard(ctx)
			if err != nil {
				return err
			}
			renderTasks(d.Tasks)
			return nil
		},
	}
	tasks.AddCommand(&cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a completed task's reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, "Reward claimed.", "/v1/tasks/"+url.PathEscape(args[0])+"/claim", nil)
		},
	})
	return tasks
}

func (a *app) newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Persist the game now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if _, err := a.client().Save(ctx); err != nil {
				return err
			}
			printSuccess("Game saved.")
			return nil
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print a save code and keep a local backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			code, err := a.client().Export(ctx)
			if err != nil {
				return err
			}
			if err := cl.SaveBackup(a.dataDir, cl.Backup{Code: code, ExportedAt: time.Now().UTC()}); err != nil {
				printWarn(fmt.Sprintf("Could not write local backup: %v", err))
			}
			fmt.Println(code)
			return nil
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [code]",
		Short: "Replace the game with a save code (defaults to the last export)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				b, err := cl.LoadBackup(a.dataDir)
				if err != nil {
					return fmt.Errorf("no code given and no local backup: %w", err)
				}
				printInfo("Using backup from " + b.ExportedAt.Local().Format("2006-01-02 15:04"))
				code = b.Code
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := a.client().Import(ctx, code)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Save imported. Balance: $%s", formatMoney(st.Balance)))
			return nil
		},
	}
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while the server was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := a.queue.Load()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := a.client()
			res, err := a.queue.Replay(ctx, func(ctx context.Context, c syncq.Command) (bool, error) {
				_, err := client.Mutate(ctx, c.Path, c.Body, c.IdempotencyKey)
				if err != nil && cl.IsRejected(err) {
					printError(fmt.Sprintf("Server refused %s %s: %v", c.Method, c.Path, err))
					return true, err
				}
				return false, err
			})
			if err != nil {
				printWarn(fmt.Sprintf("Stopped early: %v", err))
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d refused=%d remaining=%d", res.Sent, res.Rejected, res.Pending))
			return nil
		},
	}
}

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow balance and income live",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(strings.TrimRight(a.apiBase, "/") + "/v1/stream")
			if err != nil {
				return err
			}
			switch u.Scheme {
			case "https":
				u.Scheme = "wss"
			default:
				u.Scheme = "ws"
			}
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			go func() {
				<-cmd.Context().Done()
				_ = conn.Close()
			}()

			accent.Println("Watching. Ctrl+C to stop.")
			for {
				var st game.GameState
				if err := conn.ReadJSON(&st); err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				fmt.Printf("\r$%-22s  +$%s/s   ", formatMoney(st.Balance), formatMoney(st.AutoIncomePerSecond))
			}
		},
	}
}

// mutate posts a state change and prints the balance delta. When the server
// cannot be reached the command is queued for `tyc sync`.
func (a *app) mutate(cmd *cobra.Command, label, path string, body map[string]any) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	client := a.client()
	idem := uuid.NewString()

	before, err := client.State(ctx)
	if err != nil && !cl.IsRejected(err) {
		return a.enqueue(path, body, idem, err)
	}
	after, err := client.Mutate(ctx, path, body, idem)
	if err != nil {
		if cl.IsRejected(err) {
			return err
		}
		return a.enqueue(path, body, idem, err)
	}
	renderChange(label, before, after)
	return nil
}

// enqueue keeps the request's idempotency key, so a request that did reach
// the server before the connection dropped is not applied twice on replay.
func (a *app) enqueue(path string, body map[string]any, idem string, cause error) error {
	if err := a.queue.Push(syncq.Command{
		Method:         "POST",
		Path:           path,
		Body:           body,
		IdempotencyKey: idem,
	}); err != nil {
		return fmt.Errorf("request failed (%v) and could not be queued: %w", cause, err)
	}
	printWarn(fmt.Sprintf("Server unreachable (%v). Queued for `tyc sync`.", cause))
	return nil
}

func pastTense(side string) string {
	switch side {
	case "buy":
		return "Bought"
	case "sell":
		return "Sold"
	}
	return side
}
