// Package feed provides the market-data adapters: a Binance REST client for
// historical candles and prices, and a websocket stream for live prices.
// The engine itself only sees the provider interfaces in internal/market.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
)

// BinanceConfig holds the REST client configuration
type BinanceConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetry   time.Duration `json:"max_retry"` // total retry budget per request
	StreamURL  string        `json:"stream_url"`
	StaleAfter time.Duration `json:"stale_after"` // live prices older than this are unavailable
}

// Client fetches candles and prices from the Binance REST API with bounded
// exponential retry. Retry policy lives here, at the call boundary; the
// detection and scoring code never waits on I/O.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetry   time.Duration
	logger     zerolog.Logger
}

// NewClient creates a Binance REST client
func NewClient(cfg BinanceConfig, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetry:   maxRetry,
		logger:     logger.With().Str("component", "binance_client").Logger(),
	}
}

// GetKlines fetches candlestick data
func (c *Client) GetKlines(symbol, interval string, limit int) ([]market.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	body, err := c.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines for %s: %w", symbol, err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	candles := make([]market.Candle, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 7 {
			continue
		}
		candle := market.Candle{
			OpenTime:  int64(toFloat(raw[0])),
			Open:      parsePrice(raw[1]),
			High:      parsePrice(raw[2]),
			Low:       parsePrice(raw[3]),
			Close:     parsePrice(raw[4]),
			Volume:    parsePrice(raw[5]),
			CloseTime: int64(toFloat(raw[6])),
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetCurrentPrice fetches the current ticker price for a symbol
func (c *Client) GetCurrentPrice(symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, symbol)

	body, err := c.get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("error fetching price for %s: %w", symbol, err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}
	return priceResp.Price, nil
}

// get performs a GET with bounded exponential backoff on transient failures
func (c *Client) get(endpoint string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := c.httpClient.Get(endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxRetry

	if err := backoff.Retry(operation, strategy); err != nil {
		return nil, err
	}
	return body, nil
}

func parsePrice(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return toFloat(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// StaticUniverse serves a fixed watchlist as the instrument universe
type StaticUniverse struct {
	symbols []string
}

// NewStaticUniverse creates a universe provider over a configured watchlist
func NewStaticUniverse(symbols []string) *StaticUniverse {
	return &StaticUniverse{symbols: symbols}
}

// GetSymbols returns the configured watchlist
func (u *StaticUniverse) GetSymbols(ctx context.Context) ([]string, error) {
	if len(u.symbols) == 0 {
		return nil, fmt.Errorf("watchlist is empty")
	}
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out, nil
}
