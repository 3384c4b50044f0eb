package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/event"
	"options_go/internal/infra"
)

const (
	maxRetries   = 10
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// tradeMessage is one print on the ticker stream, e.g.
// {"type":"trade","symbol":"BTCUSDT","price":"65000.5","volume":"0.01","ts":1712345678901}
type tradeMessage struct {
	Type   string          `json:"type"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	TsMs   int64           `json:"ts"`
}

// subscribeMessage is sent once after every (re)connect.
type subscribeMessage struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
}

// Worker streams underlying trade prices into the engine.
type Worker struct {
	url       string
	symbol    string
	exchange  string
	pub       *event.Publisher
	metrics   *infra.Metrics
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	dropped   uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	backoff   func(int) time.Duration
}

// NewWorker creates a spot feed worker for symbol on the given websocket url.
func NewWorker(url, symbol string, pub *event.Publisher, metrics *infra.Metrics) *Worker {
	return &Worker{
		url:      url,
		symbol:   strings.ToUpper(symbol),
		exchange: exchangeName(url),
		pub:      pub,
		metrics:  metrics,
		backoff:  infra.CalculateBackoff,
	}
}

func exchangeName(url string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(url, "wss://"), "ws://")
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	return strings.ToUpper(host)
}

// Connect starts the WebSocket connection loop in the background.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Spot feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := w.backoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return domain.NewNetworkError("subscribe", err)
	}

	if w.metrics != nil {
		w.metrics.SetFeedConnected(true)
	}
	slog.Info("Spot feed connected", slog.String("symbol", w.symbol), slog.String("exchange", w.exchange))
	return nil
}

func (w *Worker) subscribe() error {
	b, err := json.Marshal(subscribeMessage{Op: "subscribe", Channel: "trades", Symbols: []string{w.symbol}})
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go w.pingLoop(pingCtx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseTrade turns a stream message into a ticker. Non-trade and invalid messages yield nil.
func parseTrade(msg []byte, exchange string) *domain.Ticker {
	var m tradeMessage
	if json.Unmarshal(msg, &m) != nil || m.Type != "trade" {
		return nil
	}
	t := &domain.Ticker{
		Symbol:   strings.ToUpper(m.Symbol),
		Price:    m.Price,
		Volume:   m.Volume,
		Exchange: exchange,
		TsMs:     m.TsMs,
	}
	if !t.Valid() {
		return nil
	}
	return t
}

func (w *Worker) handleMessage(msg []byte) {
	t := parseTrade(msg, w.exchange)
	if t == nil || t.Symbol != w.symbol {
		return
	}

	ev := event.AcquireSpotUpdateEvent()
	ev.Ts = t.TsMs * 1000
	ev.Symbol = t.Symbol
	ev.Price = t.Price.InexactFloat64()
	ev.Exchange = t.Exchange

	if !w.pub.TryPublishSpot(ev) {
		// DROP: the engine only needs the latest print
		event.ReleaseSpotUpdateEvent(ev)
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
	}
}

// Dropped returns how many prints were discarded because the engine inbox was full.
func (w *Worker) Dropped() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dropped
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	if w.metrics != nil {
		w.metrics.SetFeedConnected(false)
	}
}

// IsConnected reports whether the websocket is currently up.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the connection loop and waits for it to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
