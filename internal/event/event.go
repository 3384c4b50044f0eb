package event

import (
	"context"
	"sync"
)

// Type identifies the concrete event.
type Type int

const (
	TypeSpotUpdate Type = iota + 1
	TypeRateUpdate
)

func (t Type) String() string {
	switch t {
	case TypeSpotUpdate:
		return "SPOT_UPDATE"
	case TypeRateUpdate:
		return "RATE_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Event is anything the engine consumes. Seq must be gap-free per inbox.
type Event interface {
	GetSeq() uint64
	GetType() Type
}

// BaseEvent carries the sequence number and the producer timestamp (unix micros).
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

func (b BaseEvent) GetSeq() uint64 { return b.Seq }

// SpotUpdateEvent is a trade print of the underlying.
type SpotUpdateEvent struct {
	BaseEvent
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Exchange string  `json:"exchange"`
}

func (e *SpotUpdateEvent) GetType() Type { return TypeSpotUpdate }

// RateUpdateEvent carries a new continuously compounded risk-free rate.
type RateUpdateEvent struct {
	BaseEvent
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
}

func (e *RateUpdateEvent) GetType() Type { return TypeRateUpdate }

// Publisher stamps events with consecutive sequence numbers and sends them in that order.
// Producers on different goroutines share one Publisher per inbox.
type Publisher struct {
	mu    sync.Mutex
	next  uint64
	inbox chan<- Event
}

// NewPublisher starts numbering at 1.
func NewPublisher(inbox chan<- Event) *Publisher {
	return &Publisher{next: 1, inbox: inbox}
}

// PublishSpot stamps and sends a spot update.
func (p *Publisher) PublishSpot(ctx context.Context, ev *SpotUpdateEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.Seq = p.next
	return p.send(ctx, ev)
}

// PublishRate stamps and sends a rate update.
func (p *Publisher) PublishRate(ctx context.Context, ev *RateUpdateEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.Seq = p.next
	return p.send(ctx, ev)
}

// TryPublishSpot sends without blocking. It reports false, leaving the sequence untouched,
// when the inbox is full.
func (p *Publisher) TryPublishSpot(ev *SpotUpdateEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.Seq = p.next
	select {
	case p.inbox <- ev:
		p.next++
		return true
	default:
		return false
	}
}

// send must be called with mu held. The sequence only advances on delivery.
func (p *Publisher) send(ctx context.Context, ev Event) error {
	select {
	case p.inbox <- ev:
		p.next++
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the sequence number the next event will carry.
func (p *Publisher) Next() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
