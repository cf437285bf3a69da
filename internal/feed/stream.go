package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PriceStream maintains live prices over the Binance miniTicker websocket
// stream. It implements market.PriceProvider: a symbol whose last update is
// older than staleAfter is reported unavailable so scans skip it instead of
// ranking against a dead quote.
type PriceStream struct {
	streamURL  string
	symbols    []string
	staleAfter time.Duration
	logger     zerolog.Logger

	mu       sync.RWMutex
	prices   map[string]float64
	updated  map[string]time.Time
	conn     *websocket.Conn
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

type miniTickerEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
}

// NewPriceStream creates a stream for the given symbols
func NewPriceStream(cfg BinanceConfig, symbols []string, logger zerolog.Logger) *PriceStream {
	streamURL := cfg.StreamURL
	if streamURL == "" {
		streamURL = "wss://stream.binance.com:9443"
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &PriceStream{
		streamURL:  streamURL,
		symbols:    symbols,
		staleAfter: staleAfter,
		logger:     logger.With().Str("component", "price_stream").Logger(),
		prices:     make(map[string]float64),
		updated:    make(map[string]time.Time),
		stopChan:   make(chan struct{}),
	}
}

// Start connects and begins consuming ticker events, reconnecting with
// exponential backoff on failure.
func (ps *PriceStream) Start() {
	ps.mu.Lock()
	if ps.running {
		ps.mu.Unlock()
		return
	}
	ps.running = true
	ps.mu.Unlock()

	ps.wg.Add(1)
	go ps.run()
}

// Stop closes the stream
func (ps *PriceStream) Stop() {
	close(ps.stopChan)
	ps.mu.Lock()
	if ps.conn != nil {
		ps.conn.Close()
	}
	ps.mu.Unlock()
	ps.wg.Wait()
}

// GetCurrentPrice returns the most recent streamed price for a symbol
func (ps *PriceStream) GetCurrentPrice(symbol string) (float64, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	price, ok := ps.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price received yet for %s", symbol)
	}
	if time.Since(ps.updated[symbol]) > ps.staleAfter {
		return 0, fmt.Errorf("price for %s is stale", symbol)
	}
	return price, nil
}

func (ps *PriceStream) run() {
	defer ps.wg.Done()

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 0 // reconnect forever until stopped

	for {
		select {
		case <-ps.stopChan:
			return
		default:
		}

		if err := ps.connectAndConsume(); err != nil {
			select {
			case <-ps.stopChan:
				return
			default:
			}
			wait := strategy.NextBackOff()
			ps.logger.Warn().Err(err).Dur("retry_in", wait).Msg("price stream disconnected")
			select {
			case <-time.After(wait):
			case <-ps.stopChan:
				return
			}
			continue
		}
		strategy.Reset()
	}
}

func (ps *PriceStream) connectAndConsume() error {
	streams := make([]string, 0, len(ps.symbols))
	for _, symbol := range ps.symbols {
		streams = append(streams, strings.ToLower(symbol)+"@miniTicker")
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", ps.streamURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	ps.mu.Lock()
	ps.conn = conn
	ps.mu.Unlock()

	ps.logger.Info().Int("symbols", len(ps.symbols)).Msg("price stream connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return fmt.Errorf("websocket read failed: %w", err)
		}

		var event miniTickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Data.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(event.Data.Close, 64)
		if err != nil || price <= 0 {
			continue
		}

		ps.mu.Lock()
		ps.prices[event.Data.Symbol] = price
		ps.updated[event.Data.Symbol] = time.Now()
		ps.mu.Unlock()
	}
}
