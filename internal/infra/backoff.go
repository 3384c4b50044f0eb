package infra

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns base*2^retry capped at 60s, plus up to 20% jitter.
func CalculateBackoff(retry int) time.Duration {
	return backoff(retry, backoffBase, backoffMax)
}

func backoff(retry int, base, limit time.Duration) time.Duration {
	if retry < 0 {
		retry = 0
	}
	d := limit
	if retry < 30 {
		if exp := base << uint(retry); exp > 0 && exp < limit {
			d = exp
		}
	}
	jitter := time.Duration(rand.Int64N(int64(d)/5 + 1))
	return d + jitter
}
