// Package config loads model.Settings from environment variables, per the
// scanner's CLI surface: one binary, zero flags, every behavior tunable by
// env key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/tools/errs"
)

// phVariants and plVariants are the variant tags ALLOW_PHx/ALLOW_PLx gate.
var (
	phVariants = []string{"PH1", "PH2", "PH3", "PH4", "PH5"}
	plVariants = []string{"PL1", "PL2", "PL3", "PL4", "PL5"}
)

// Load reads every recognised env key and returns a populated Settings, or
// a tools/errs.ErrConfig-wrapped error naming the offending key.
func Load() (model.Settings, error) {
	var s model.Settings
	var err error

	s.FetchAllSymbols = envBool("FETCH_ALL_COINS", false)
	s.Symbols = envList("SYMBOLS")
	s.Timeframes = envList("TIMEFRAMES")
	if len(s.Timeframes) == 0 {
		return s, fmt.Errorf("%w: TIMEFRAMES must list at least one timeframe", errs.ErrConfig)
	}

	if s.Pivot.Left, err = envInt("PIVOT_LEFT", 5); err != nil {
		return s, err
	}
	if s.Pivot.Left < 1 {
		return s, fmt.Errorf("%w: PIVOT_LEFT must be >= 1, got %d", errs.ErrConfig, s.Pivot.Left)
	}
	if s.Pivot.Right, err = envInt("PIVOT_RIGHT", 5); err != nil {
		return s, err
	}
	if s.Pivot.Right < 1 {
		return s, fmt.Errorf("%w: PIVOT_RIGHT must be >= 1, got %d", errs.ErrConfig, s.Pivot.Right)
	}
	if s.Pivot.KeepPivots, err = envInt("KEEP_PIVOTS", 100); err != nil {
		return s, err
	}

	s.Pivot.Allow = make(map[string]bool, len(phVariants)+len(plVariants))
	for _, v := range phVariants {
		s.Pivot.Allow[v] = envBool("ALLOW_"+v, true)
	}
	for _, v := range plVariants {
		s.Pivot.Allow[v] = envBool("ALLOW_"+v, true)
	}

	if s.HistoricalLimit, err = envInt("HISTORICAL_LIMIT", 500); err != nil {
		return s, err
	}
	if s.MinVolume24h, err = envFloat("MIN_VOLUME_24H", 0); err != nil {
		return s, err
	}
	s.QuoteCurrency = envString("QUOTE_CURRENCY", "USDT")
	if s.MaxPairs, err = envInt("MAX_PAIRS", 0); err != nil {
		return s, err
	}

	s.Telegram.Token = envString("TELEGRAM_BOT_TOKEN", "")
	s.Telegram.ChatID = envString("TELEGRAM_CHAT_ID", "")
	s.Telegram.Enabled = s.Telegram.Token != ""
	if s.Telegram.ChatID != "" {
		chatID, convErr := strconv.Atoi(s.Telegram.ChatID)
		if convErr != nil {
			return s, fmt.Errorf("%w: TELEGRAM_CHAT_ID must be an integer id, got %q", errs.ErrConfig, s.Telegram.ChatID)
		}
		s.Telegram.Users = []int{chatID}
	}

	s.Trading.Enabled = envBool("ENABLE_TRADING", false)
	s.Trading.Demo = envBool("DEMO_TRADING", true)
	if s.Trading.PositionSize, err = envFloat("POSITION_SIZE", 0); err != nil {
		return s, err
	}
	if s.Trading.Leverage, err = envInt("LEVERAGE", 1); err != nil {
		return s, err
	}

	s.Dashboard.Host = envString("FLASK_HOST", "0.0.0.0")
	if s.Dashboard.Port, err = envInt("FLASK_PORT", 5000); err != nil {
		return s, err
	}

	updateInterval, err := envDuration("UPDATE_INTERVAL", 5*time.Second)
	if err != nil {
		return s, err
	}
	s.UpdateInterval = int(updateInterval.Seconds())

	return s, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errs.ErrConfig, key, v)
	}
	return parsed, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", errs.ErrConfig, key, v)
	}
	return parsed, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	// Bare integers (e.g. "5") are seconds, matching the Flask-era env
	// convention; anything else is parsed as a duration string ("5s", "1m").
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	parsed, err := str2duration.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be seconds or a duration string, got %q", errs.ErrConfig, key, v)
	}
	return parsed, nil
}
