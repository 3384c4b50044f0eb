package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"options_go/internal/event"
)

// rateResponse is the JSON body served by the rate endpoint, e.g.
// {"symbol":"SOFR","rate":"5.31","unit":"percent"}.
type rateResponse struct {
	Symbol string           `json:"symbol"`
	Rate   *decimal.Decimal `json:"rate"`
	Unit   string           `json:"unit"` // "percent" or "decimal"
	AsOf   string           `json:"as_of"`
}

var hundred = decimal.NewFromInt(100)

// RateClient polls a risk-free rate endpoint and publishes changes to the engine.
type RateClient struct {
	pub          *event.Publisher
	onUpdate     func(decimal.Decimal)
	rate         decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	retryDelay   time.Duration
	apiURL       string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewRateClient creates a poller for apiURL. pollIntervalSec <= 0 means one minute.
func NewRateClient(pub *event.Publisher, apiURL string, pollIntervalSec int) *RateClient {
	c := &RateClient{
		pub:          pub,
		rate:         decimal.Zero,
		pollInterval: 60 * time.Second,
		retryDelay:   time.Second,
		apiURL:       apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if pollIntervalSec > 0 {
		c.pollInterval = time.Duration(pollIntervalSec) * time.Second
	}
	return c
}

// OnUpdate registers a callback invoked with every new rate (as a decimal fraction).
func (c *RateClient) OnUpdate(fn func(decimal.Decimal)) {
	c.onUpdate = fn
}

// Start begins polling for rate updates
func (c *RateClient) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := c.fetchRate(ctx); err != nil {
		slog.Warn("Initial rate fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Rate polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Rate polling stopped")
				return
			case <-ticker.C:
				if err := c.fetchRate(ctx); err != nil {
					slog.Warn("Rate fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchRate fetches the current rate with retry logic
func (c *RateClient) fetchRate(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1x, 2x
			delay := c.retryDelay << uint(i-1)
			slog.Info("Retrying rate fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Rate fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *RateClient) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var data rateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}
	if data.Rate == nil {
		return fmt.Errorf("rate missing from response")
	}

	newRate := *data.Rate
	if !strings.EqualFold(data.Unit, "decimal") {
		newRate = newRate.Div(hundred)
	}

	c.mu.Lock()
	oldRate := c.rate
	c.rate = newRate
	c.mu.Unlock()

	if oldRate.Equal(newRate) {
		return nil
	}

	slog.Info("Risk-free rate updated",
		slog.String("rate", newRate.String()),
		slog.String("old_rate", oldRate.String()),
		slog.String("source", data.Symbol),
	)
	if c.onUpdate != nil {
		c.onUpdate(newRate)
	}
	if c.pub != nil {
		ev := &event.RateUpdateEvent{
			BaseEvent: event.BaseEvent{Ts: time.Now().UnixMicro()},
			Rate:      newRate.InexactFloat64(),
			Source:    data.Symbol,
		}
		if err := c.pub.PublishRate(ctx, ev); err != nil {
			return fmt.Errorf("publish rate: %w", err)
		}
	}
	return nil
}

// Stop stops the polling
func (c *RateClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// GetRate returns the latest rate as a decimal fraction (0.0531 for 5.31%).
func (c *RateClient) GetRate() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}
