package model

// TelegramSettings configures the bot notification channel.
type TelegramSettings struct {
	Enabled bool
	Token   string
	ChatID  string
	Users   []int
}

// TradingSettings configures optional automated order placement.
type TradingSettings struct {
	Enabled      bool
	Demo         bool
	PositionSize float64
	Leverage     int
}

// PivotSettings configures the pivot engine's window and allow-list.
type PivotSettings struct {
	Left       int
	Right      int
	KeepPivots int
	Allow      map[string]bool // variant tag ("PH1".."PH5","PL1".."PL5") -> accepted
}

// DashboardSettings configures the HTTP/WebSocket dashboard bind address.
type DashboardSettings struct {
	Host string
	Port int
}

// Settings is the top level configuration for a scanner run.
type Settings struct {
	Symbols         []string
	FetchAllSymbols bool
	QuoteCurrency   string
	MinVolume24h    float64
	MaxPairs        int

	Timeframes []string
	Pivot      PivotSettings

	HistoricalLimit int
	UpdateInterval  int // seconds

	Telegram TelegramSettings
	Trading  TradingSettings
	Dashboard DashboardSettings
}
