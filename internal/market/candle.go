package market

import (
	"context"
	"time"
)

// Candle represents a single OHLCV bar for a fixed time interval.
// Candles are immutable values produced by an external data provider,
// ordered ascending by open time.
type Candle struct {
	OpenTime  int64   `json:"openTime"` // unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"` // unix milliseconds
}

// OpenedAt returns the candle open time as a time.Time.
func (c Candle) OpenedAt() time.Time {
	return time.Unix(c.OpenTime/1000, 0).UTC()
}

// ClosedAt returns the candle close time as a time.Time.
func (c Candle) ClosedAt() time.Time {
	return time.Unix(c.CloseTime/1000, 0).UTC()
}

// CandleProvider fetches historical candles for a symbol and interval.
type CandleProvider interface {
	GetKlines(symbol, interval string, limit int) ([]Candle, error)
}

// PriceProvider resolves the current price for a symbol. An error means
// the price is stale or unavailable; callers treat that as a soft skip.
type PriceProvider interface {
	GetCurrentPrice(symbol string) (float64, error)
}

// UniverseProvider returns the set of symbols to work on (e.g. a watchlist).
type UniverseProvider interface {
	GetSymbols(ctx context.Context) ([]string, error)
}
