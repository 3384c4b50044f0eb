package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"options_go/internal/domain"
	"options_go/internal/event"
	"options_go/internal/infra"
	"options_go/internal/strategy"
)

const maxRecentActions = 256

// Pricer values one book line at the given spot and rate.
type Pricer interface {
	ValuePosition(ctx context.Context, pos domain.Position, spot, rate float64) domain.PositionValue
}

// Executor fills strategy actions and reports the hedge account.
type Executor interface {
	Execute(ctx context.Context, a strategy.Action) error
	Account(symbol string, spot float64) domain.HedgeAccount
}

// Config holds the static inputs of a Sequencer.
type Config struct {
	InboxSize   int
	Symbol      string
	Positions   []domain.Position
	InitialRate float64
	DumpPath    string // post-mortem file written on panic
}

// Sequencer is the core single-threaded event processor.
// Every spot or rate update reprices the whole book and is handed to the strategy.
type Sequencer struct {
	inbox     chan event.Event
	nextSeq   uint64
	symbol    string
	positions []domain.Position
	dumpPath  string

	pricer   Pricer
	strategy strategy.Strategy
	executor Executor
	metrics  *infra.Metrics

	// Boundary: used to notify the API or other systems of state changes
	onStateUpdate func(domain.MarketState)

	mu      sync.RWMutex // guards state and actions for external reads
	state   domain.MarketState
	actions []strategy.Action
}

// NewSequencer creates a new sequencer instance. strat and onUpdate may be nil.
func NewSequencer(cfg Config, pricer Pricer, strat strategy.Strategy, metrics *infra.Metrics, onUpdate func(domain.MarketState)) *Sequencer {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.DumpPath == "" {
		cfg.DumpPath = "panic_dump.json"
	}
	if metrics == nil {
		metrics = &infra.Metrics{}
	}
	return &Sequencer{
		inbox:         make(chan event.Event, cfg.InboxSize),
		nextSeq:       1,
		symbol:        cfg.Symbol,
		positions:     append([]domain.Position(nil), cfg.Positions...),
		dumpPath:      cfg.DumpPath,
		pricer:        pricer,
		strategy:      strat,
		metrics:       metrics,
		onStateUpdate: onUpdate,
		state:         domain.MarketState{Symbol: cfg.Symbol, Rate: cfg.InitialRate},
	}
}

// SetExecutor routes strategy actions to e. Call before Run.
func (s *Sequencer) SetExecutor(e Executor) {
	s.executor = e
}

// Inbox returns the event channel. Producers should send through an event.Publisher.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started",
		slog.String("symbol", s.symbol),
		slog.Int("positions", len(s.positions)),
	)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			// Halt after dump. A book priced on a broken event stream is worse than none.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ctx, ev)
		}
	}
}

func (s *Sequencer) processEvent(ctx context.Context, ev event.Event) {
	// 1. Sequence Gap Check (Halt Policy)
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	// 2. Logic Dispatch
	switch e := ev.(type) {
	case *event.SpotUpdateEvent:
		s.handleSpotUpdate(ctx, e)
		event.ReleaseSpotUpdateEvent(e)
	case *event.RateUpdateEvent:
		s.handleRateUpdate(ctx, e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	// 3. Increment Sequence
	s.nextSeq++
}

func (s *Sequencer) handleSpotUpdate(ctx context.Context, e *event.SpotUpdateEvent) {
	if e.Symbol != s.symbol {
		slog.Debug("Ignoring spot for other symbol", slog.String("symbol", e.Symbol))
		return
	}
	if !(e.Price > 0) {
		slog.Warn("Ignoring non-positive spot", slog.Float64("price", e.Price))
		return
	}
	s.reprice(ctx, e.Price, s.state.Rate)
}

func (s *Sequencer) handleRateUpdate(ctx context.Context, e *event.RateUpdateEvent) {
	slog.Info("Risk-free rate updated", slog.Float64("rate", e.Rate), slog.String("source", e.Source))
	if s.state.Spot > 0 {
		s.reprice(ctx, s.state.Spot, e.Rate)
		return
	}
	s.mu.Lock()
	s.state.Rate = e.Rate
	s.mu.Unlock()
}

// reprice values every position and publishes the new state.
// Pricing runs without the lock; only the swap is guarded.
func (s *Sequencer) reprice(ctx context.Context, spot, rate float64) {
	values := make([]domain.PositionValue, len(s.positions))
	for i, pos := range s.positions {
		values[i] = s.pricer.ValuePosition(ctx, pos, spot, rate)
		if values[i].Err != "" {
			slog.Warn("Position pricing failed",
				slog.String("position", pos.ID),
				slog.String("error", values[i].Err),
			)
		}
	}

	next := domain.MarketState{Symbol: s.symbol, Spot: spot, Rate: rate, Positions: values}
	next.Aggregate()
	next.Touch(time.Now())
	s.metrics.RecordRepricing()

	var actions []strategy.Action
	if s.strategy != nil {
		actions = s.strategy.OnMarketUpdate(next)
		for _, action := range actions {
			slog.Info("STRATEGY_ACTION",
				slog.String("id", action.ID.String()),
				slog.String("type", action.Type.String()),
				slog.Float64("qty", action.Qty),
				slog.Float64("price", action.Price),
				slog.String("reason", action.Reason),
			)
			s.metrics.RecordHedgeAction()
			if s.executor == nil {
				continue
			}
			if err := s.executor.Execute(ctx, action); err != nil {
				s.metrics.RecordError()
				slog.Error("Hedge execution failed", slog.String("id", action.ID.String()), slog.Any("error", err))
			}
		}
	}
	if s.executor != nil {
		acct := s.executor.Account(s.symbol, spot)
		next.Hedge = &acct
	}

	s.mu.Lock()
	s.state = next
	if len(actions) > 0 {
		s.actions = append(s.actions, actions...)
		if over := len(s.actions) - maxRecentActions; over > 0 {
			s.actions = append(s.actions[:0], s.actions[over:]...)
		}
	}
	s.mu.Unlock()

	if s.onStateUpdate != nil {
		s.onStateUpdate(next)
	}
}

// GetMarketState returns a snapshot of the book (external read).
func (s *Sequencer) GetMarketState() domain.MarketState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	st.Positions = append([]domain.PositionValue(nil), s.state.Positions...)
	return st
}

// RecentActions returns up to the last 256 strategy actions, oldest first.
func (s *Sequencer) RecentActions() []strategy.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]strategy.Action(nil), s.actions...)
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	s.mu.RLock()
	data := struct {
		NextSeq uint64             `json:"next_seq"`
		State   domain.MarketState `json:"state"`
		Actions []strategy.Action  `json:"actions"`
	}{
		NextSeq: s.nextSeq,
		State:   s.state,
		Actions: s.actions,
	}
	b, err := json.MarshalIndent(data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
