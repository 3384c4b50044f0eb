package event

import (
	"sync"
)

// EventPool provides sync.Pool for high-frequency spot events.
// Use this to reduce GC pressure in the feed hotpath.
//
// Usage:
//
//	ev := AcquireSpotUpdateEvent()
//	ev.Symbol = "BTCUSDT"
//	// ... use event ...
//	ReleaseSpotUpdateEvent(ev)  // Return to pool after processing
var spotUpdatePool = sync.Pool{
	New: func() interface{} {
		return &SpotUpdateEvent{}
	},
}

// AcquireSpotUpdateEvent gets a SpotUpdateEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireSpotUpdateEvent() *SpotUpdateEvent {
	return spotUpdatePool.Get().(*SpotUpdateEvent)
}

// ReleaseSpotUpdateEvent returns a SpotUpdateEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseSpotUpdateEvent(ev *SpotUpdateEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Symbol = ""
	ev.Price = 0
	ev.Exchange = ""

	spotUpdatePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 1000

	evs := make([]*SpotUpdateEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireSpotUpdateEvent())
	}
	for _, ev := range evs {
		ReleaseSpotUpdateEvent(ev)
	}
}
