package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/urfave/cli/v2"

	"github.com/chochsentinel/sentinel/backtest"
	"github.com/chochsentinel/sentinel/config"
	"github.com/chochsentinel/sentinel/dashboard"
	"github.com/chochsentinel/sentinel/download"
	"github.com/chochsentinel/sentinel/exchange"
	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/notification"
	"github.com/chochsentinel/sentinel/order"
	"github.com/chochsentinel/sentinel/sentinel"
	"github.com/chochsentinel/sentinel/signalbus"
	"github.com/chochsentinel/sentinel/storage"
	"github.com/chochsentinel/sentinel/tools/log"
	"github.com/chochsentinel/sentinel/tools/metrics"
)

const defaultDatabase = "sentinel.db"

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

func main() {
	app := &cli.App{
		Name:     "sentinel",
		HelpName: "sentinel",
		Usage:    "CHoCH futures market-structure scanner",
		Commands: []*cli.Command{
			runCommand(),
			downloadCommand(),
			backtestCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newExchange builds the Binance futures client, reading API credentials
// directly from the environment (not part of config.Load's enumerated
// surface, matching the ad hoc os.Getenv idiom it is grounded on).
func newExchange(ctx context.Context) (*exchange.BinanceFutures, error) {
	return exchange.NewBinanceFutures(ctx,
		exchange.WithFuturesCredentials(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")),
	)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:     "run",
		HelpName: "run",
		Usage:    "start the continuous scan loop",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			settings, err := config.Load()
			if err != nil {
				return err
			}

			binanceClient, err := newExchange(ctx)
			if err != nil {
				return err
			}

			store, err := storage.FromSQL(sqlite.Open(defaultDatabase))
			if err != nil {
				return err
			}

			bus := signalbus.New[model.Signal](8)

			feed := order.NewOrderFeed()
			manager := order.NewManager(ctx, binanceClient, feed, settings.Trading.PositionSize,
				float64(settings.Trading.Leverage), settings.Trading.Demo)
			feed.Start()

			var hub *dashboard.Hub
			if settings.Dashboard.Port > 0 {
				hub = dashboard.NewHub(store)
				server := dashboard.NewServer(hub, store)
				go func() {
					addr := fmt.Sprintf("%s:%d", settings.Dashboard.Host, settings.Dashboard.Port)
					if err := server.ListenAndServe(addr); err != nil {
						log.Error("dashboard: server stopped: ", err)
					}
				}()
			}

			if settings.Telegram.Enabled {
				var options []notification.Option
				options = append(options, notification.WithAccountProvider(binanceClient))
				if hub != nil {
					options = append(options, notification.WithDashboard(hub))
				}
				telegram, err := notification.NewTelegram(manager, store, settings, options...)
				if err != nil {
					return err
				}
				telegram.Start()
				bus.Subscribe(telegram.OnSignal)
			}

			if settings.Trading.Enabled {
				bus.Subscribe(manager.OnSignal)
			}

			scanner := sentinel.NewScanner(settings, binanceClient, bus,
				sentinel.WithTickInterval(time.Duration(settings.UpdateInterval)*time.Second),
				sentinel.WithMetrics(metrics.NewCollector()))

			log.Info("sentinel: scanning ", len(settings.Timeframes), " timeframe(s)")
			return scanner.Run(ctx)
		},
	}
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:     "download",
		HelpName: "download",
		Usage:    "download historical futures candles to CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pair", Aliases: []string{"p"}, Usage: "eg. BTCUSDT", Required: true},
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "eg. 100 (default 30 days)"},
			&cli.TimestampFlag{Name: "start", Aliases: []string{"s"}, Usage: "eg. 2021-12-01", Layout: "2006-01-02"},
			&cli.TimestampFlag{Name: "end", Aliases: []string{"e"}, Usage: "eg. 2021-12-31", Layout: "2006-01-02"},
			&cli.StringFlag{Name: "timeframe", Aliases: []string{"t"}, Usage: "eg. 1h", Required: true},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "eg. ./btc.csv", Required: true},
		},
		Action: func(c *cli.Context) error {
			binanceClient, err := newExchange(c.Context)
			if err != nil {
				return err
			}

			var options []download.Option
			if days := c.Int("days"); days > 0 {
				options = append(options, download.WithDays(days))
			}

			start, end := c.Timestamp("start"), c.Timestamp("end")
			if start != nil && end != nil && !start.IsZero() && !end.IsZero() {
				options = append(options, download.WithInterval(*start, *end))
			} else if start != nil || end != nil {
				return errors.New("download: START and END must be given together")
			}

			return download.NewDownloader(binanceClient).
				Download(c.Context, c.String("pair"), c.String("timeframe"), c.String("output"), options...)
		},
	}
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:     "backtest",
		HelpName: "backtest",
		Usage:    "replay the detection engine over historical candles",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pair", Aliases: []string{"p"}, Usage: "eg. BTCUSDT", Required: true},
			&cli.StringFlag{Name: "timeframe", Aliases: []string{"t"}, Usage: "eg. 1h", Required: true},
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "eg. 100 (default 30 days)", Value: 30},
		},
		Action: func(c *cli.Context) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}

			binanceClient, err := newExchange(c.Context)
			if err != nil {
				return err
			}

			end := time.Now().UTC()
			start := end.AddDate(0, 0, -c.Int("days"))

			candles, err := binanceClient.CandlesByPeriod(c.Context, c.String("pair"), c.String("timeframe"), start, end)
			if err != nil {
				return err
			}

			report := backtest.NewRunner(settings).Run(candles, c.String("pair"), c.String("timeframe"))
			report.Print(os.Stdout)
			return nil
		},
	}
}
