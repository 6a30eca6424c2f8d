// Package marketdata fetches daily OHLCV history for the screener and the
// backtester. Every provider satisfies the same Daily signature the pipeline
// and backtest packages declare for their data sources; the indicator core
// never imports this package.
package marketdata

import (
	"context"
	"errors"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// Provider serves daily price history, most recent bars last.
type Provider interface {
	Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error)
}

// ErrNoData means the provider has no usable history for the symbol: an
// unknown ticker, an empty chart payload, or a missing file.
var ErrNoData = errors.New("no data for symbol")
