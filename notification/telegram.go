// Package notification formats confirmed CHoCH signals into alert messages,
// sends them to a Telegram bot with retry-on-transient-failure, fans them
// out to the dashboard socket, and persists them to the alert store. It
// also answers a small set of interactive status commands.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/order"
	"github.com/chochsentinel/sentinel/storage"
	"github.com/chochsentinel/sentinel/tools/log"
)

// chartBaseURL is the charting site used to build the per-signal chart
// link; it needs only a symbol query parameter.
const chartBaseURL = "https://www.tradingview.com/chart/?symbol=BINANCE:"

// AccountProvider is the narrow balance-lookup surface /balance needs.
// exchange.BinanceFutures satisfies it.
type AccountProvider interface {
	Account() (model.Account, error)
}

// Broadcaster pushes one alert to every connected dashboard socket.
type Broadcaster interface {
	Broadcast(alert *model.Alert)
}

// Option customizes a Telegram notifier at construction time.
type Option func(*Telegram)

// WithAccountProvider wires /balance to report exchange balances.
func WithAccountProvider(provider AccountProvider) Option {
	return func(t *Telegram) { t.account = provider }
}

// WithDashboard wires confirmed alerts into the dashboard socket fan-out.
func WithDashboard(hub Broadcaster) Option {
	return func(t *Telegram) { t.hub = hub }
}

// Telegram sends CHoCH alerts to a Telegram chat and answers status
// commands about the scanner's tracked positions.
type Telegram struct {
	settings model.Settings
	manager  *order.Manager
	store    storage.AlertStore
	account  AccountProvider
	hub      Broadcaster

	client      *tb.Bot
	defaultMenu *tb.ReplyMarkup
}

// NewTelegram builds a Telegram notifier authorized for settings.Telegram.Users,
// polling for the interactive command set (/help, /status, /positions,
// /balance). manager and store must be non-nil; options wire in optional
// collaborators.
func NewTelegram(manager *order.Manager, store storage.AlertStore, settings model.Settings, options ...Option) (*Telegram, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	authorized := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("notification: update with no sender: ", u)
			return false
		}
		for _, user := range settings.Telegram.Users {
			if int(u.Message.Sender.ID) == user {
				return true
			}
		}
		log.Error("notification: unauthorized sender: ", u.Message.Sender.ID)
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Telegram.Token,
		Poller:    authorized,
	})
	if err != nil {
		return nil, fmt.Errorf("notification: creating bot client: %w", err)
	}

	err = client.SetCommands([]tb.Command{
		{Text: "help", Description: "list available commands"},
		{Text: "status", Description: "scanner health summary"},
		{Text: "positions", Description: "open CHoCH-derived positions"},
		{Text: "balance", Description: "exchange account balance"},
	})
	if err != nil {
		return nil, fmt.Errorf("notification: registering commands: %w", err)
	}

	statusBtn := menu.Text("/status")
	positionsBtn := menu.Text("/positions")
	balanceBtn := menu.Text("/balance")
	menu.Reply(menu.Row(statusBtn, positionsBtn, balanceBtn))

	t := &Telegram{
		settings:    settings,
		manager:     manager,
		store:       store,
		client:      client,
		defaultMenu: menu,
	}
	for _, option := range options {
		option(t)
	}

	client.Handle("/help", t.helpHandle)
	client.Handle("/status", t.statusHandle)
	client.Handle("/positions", t.positionsHandle)
	client.Handle("/balance", t.balanceHandle)

	return t, nil
}

// Start begins polling Telegram for commands and announces the bot's
// availability to every authorized user.
func (t *Telegram) Start() {
	go t.client.Start()
	for _, id := range t.settings.Telegram.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(id)}, "CHoCH scanner online.", t.defaultMenu); err != nil {
			log.Error("notification: announce on start: ", err)
		}
	}
}

// OnSignal formats sig as a chat message, sends it with retry-on-transient-
// failure, fans it into the dashboard, and persists an Alert record. It
// is the bus subscriber wired into signalbus.Bus.Subscribe.
func (t *Telegram) OnSignal(sig model.Signal) error {
	alert := alertFromSignal(sig)
	message := formatAlertMessage(sig, alert.ChartLink)

	if err := t.sendWithRetry(message); err != nil {
		log.Error("notification: sending alert after retries: ", err)
	}

	if t.hub != nil {
		t.hub.Broadcast(alert)
	}

	if t.store != nil {
		if err := t.store.Save(alert); err != nil {
			return fmt.Errorf("notification: persisting alert: %w", err)
		}
	}
	return nil
}

// sendWithRetry POSTs message to every authorized user, retrying transient
// send failures with exponential backoff before giving up on that user.
func (t *Telegram) sendWithRetry(message string) error {
	var lastErr error
	for _, id := range t.settings.Telegram.Users {
		b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true}
		for attempt := 0; attempt < 4; attempt++ {
			_, err := t.client.Send(&tb.User{ID: int64(id)}, message)
			if err == nil {
				lastErr = nil
				break
			}
			lastErr = err
			time.Sleep(b.Duration())
		}
	}
	return lastErr
}

func alertFromSignal(sig model.Signal) *model.Alert {
	signalType := fmt.Sprintf("CHoCH %s", capitalize(string(sig.Direction)))

	return &model.Alert{
		Symbol:          sig.Symbol,
		Timeframe:       sig.Timeframe,
		SignalType:      signalType,
		Direction:       sig.Direction,
		PatternGroup:    sig.Group,
		Price:           sig.Price,
		SignalTimestamp: sig.BarIndex.UTC(),
		ChartLink:       chartBaseURL + sig.Symbol,
		IsFutures:       true,
		Region:          "global",
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatAlertMessage(sig model.Signal, chartLink string) string {
	return fmt.Sprintf(
		"*CHoCH %s*\nSymbol: `%s`\nTimeframe: `%s`\nGroup: `%s`\nPrice: `%.6f`\n[Chart](%s)",
		strings.ToUpper(string(sig.Direction)), sig.Symbol, sig.Timeframe, sig.Group, sig.Price, chartLink,
	)
}

func (t *Telegram) helpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.Error("notification: fetching commands: ", err)
		return
	}
	lines := make([]string, 0, len(commands))
	for _, c := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", c.Text, c.Description))
	}
	if _, err := t.client.Send(m.Sender, strings.Join(lines, "\n")); err != nil {
		log.Error("notification: sending help: ", err)
	}
}

func (t *Telegram) statusHandle(m *tb.Message) {
	open := 0
	for _, p := range t.manager.Positions() {
		if p.Status != order.PositionClosed {
			open++
		}
	}
	message := fmt.Sprintf("*STATUS*\nTracked symbols: `%d`\nOpen positions: `%d`",
		len(t.settings.Symbols), open)
	if _, err := t.client.Send(m.Sender, message); err != nil {
		log.Error("notification: sending status: ", err)
	}
}

func (t *Telegram) positionsHandle(m *tb.Message) {
	positions := t.manager.Positions()
	if len(positions) == 0 {
		if _, err := t.client.Send(m.Sender, "No tracked positions."); err != nil {
			log.Error("notification: sending positions: ", err)
		}
		return
	}

	var b strings.Builder
	b.WriteString("*POSITIONS*\n")
	for key, p := range positions {
		fmt.Fprintf(&b, "`%s` dir=%s status=%s pnl=%.4f\n", key, p.Direction, p.Status, p.PnL)
	}
	if _, err := t.client.Send(m.Sender, b.String()); err != nil {
		log.Error("notification: sending positions: ", err)
	}
}

func (t *Telegram) balanceHandle(m *tb.Message) {
	if t.account == nil {
		if _, err := t.client.Send(m.Sender, "Balance reporting is not configured."); err != nil {
			log.Error("notification: sending balance: ", err)
		}
		return
	}

	account, err := t.account.Account()
	if err != nil {
		log.Error("notification: fetching account: ", err)
		if _, sendErr := t.client.Send(m.Sender, "Failed to fetch account balance."); sendErr != nil {
			log.Error("notification: sending balance error: ", sendErr)
		}
		return
	}

	var b strings.Builder
	b.WriteString("*BALANCE*\n")
	for _, balance := range account.Balances {
		total := balance.Free + balance.Lock
		if total == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: `%.4f`\n", balance.Asset, total)
	}
	fmt.Fprintf(&b, "-----\nTotal: `%.4f`\n", account.Equity())
	if _, err := t.client.Send(m.Sender, b.String()); err != nil {
		log.Error("notification: sending balance: ", err)
	}
}
