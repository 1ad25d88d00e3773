package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// WebSocketFeed streams trade prices over a WebSocket connection with
// automatic reconnect. Transient failures are logged and retried after the
// reconnect delay; the loop never exits on its own.
type WebSocketFeed struct {
	url            string
	apiKey         string
	symbols        []string
	vixSymbol      string
	ticks          chan models.PricePoint
	reconnectDelay time.Duration
	mu             sync.Mutex
	conn           *websocket.Conn
}

// wsMessage is the wire format of one feed update
type wsMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// NewWebSocketFeed creates a feed for the configured universe plus the VIX level
func NewWebSocketFeed(cfg *config.FeedConfig, universe *config.UniverseConfig) *WebSocketFeed {
	return &WebSocketFeed{
		url:            cfg.URL,
		apiKey:         cfg.APIKey,
		symbols:        universe.Symbols,
		vixSymbol:      universe.VIXSymbol,
		ticks:          make(chan models.PricePoint, 1000),
		reconnectDelay: cfg.ReconnectDelay,
	}
}

// Ticks returns the delivery channel
func (f *WebSocketFeed) Ticks() <-chan models.PricePoint {
	return f.ticks
}

// Start runs the connect/read/reconnect loop until ctx is cancelled
func (f *WebSocketFeed) Start(ctx context.Context) error {
	for {
		if err := f.connect(ctx); err != nil {
			logger.Error("feed connection failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			logger.Info("market data feed stopped")
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
			logger.Info("reconnecting market data feed...")
		}
	}
}

// connect dials, subscribes and reads until the connection drops
func (f *WebSocketFeed) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial feed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.conn != nil {
			f.conn.Close()
			f.conn = nil
		}
		f.mu.Unlock()
	}()

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.Info("market data feed connected",
		zap.String("url", f.url),
		zap.Strings("symbols", f.symbols),
		zap.String("vix", f.vixSymbol),
	)

	// Close the connection when ctx ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed read failed: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("skipping malformed feed message", zap.Error(err))
			continue
		}

		if msg.Symbol == "" || msg.Price <= 0 {
			continue
		}

		point := models.PricePoint{
			Symbol:    msg.Symbol,
			Timestamp: time.UnixMilli(msg.Timestamp),
			Price:     msg.Price,
			Volume:    msg.Volume,
			Bid:       msg.Bid,
			Ask:       msg.Ask,
		}

		select {
		case f.ticks <- point:
		default:
			// Drop on a full buffer rather than block the read loop
			logger.Warn("feed buffer full, dropping tick",
				zap.String("symbol", msg.Symbol),
			)
		}
	}
}

// subscribe sends the subscription message for all tracked symbols
func (f *WebSocketFeed) subscribe(conn *websocket.Conn) error {
	symbols := append([]string{}, f.symbols...)
	symbols = append(symbols, f.vixSymbol)

	subMsg := map[string]interface{}{
		"op":      "subscribe",
		"symbols": symbols,
	}
	if f.apiKey != "" {
		subMsg["api_key"] = f.apiKey
	}

	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	return nil
}
