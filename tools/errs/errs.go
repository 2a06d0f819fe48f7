// Package errs defines the error-kind taxonomy shared across the scanner:
// transient I/O, malformed data, configuration, invariant violations, and
// order-placement rejections. Call sites wrap a cause with one of these
// sentinels via fmt.Errorf("...: %w", ...) and classify with errors.Is/As.
package errs

import "errors"

var (
	// ErrTransientIO marks a recoverable exchange/bot/HTTP failure. The unit
	// of work (one scan, one bot send) is abandoned; the caller proceeds.
	ErrTransientIO = errors.New("transient i/o error")

	// ErrDataShape marks missing fields, non-monotonic timestamps, or too
	// few bars. Logged at debug level; the unit returns no-signal.
	ErrDataShape = errors.New("malformed data")

	// ErrConfig marks a missing required key, a bad timeframe format, or an
	// unsupported synthesised timeframe. Fatal at startup.
	ErrConfig = errors.New("configuration error")

	// ErrInvariant marks an OHLC violation, a synthetic pivot outside its
	// gap, or adjacent same-type pivots surviving a rebuild.
	ErrInvariant = errors.New("invariant violation")

	// ErrOrder marks an exchange rejection (notional, precision, margin).
	ErrOrder = errors.New("order rejected")
)
