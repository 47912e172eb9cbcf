package model

import "time"

// TokenBucket is a rate limiter expressed as a value type. Consume is a pure
// function of the prior state and the supplied clock reading, so callers own
// all waiting and storage; the bucket itself never sleeps.
type TokenBucket struct {
	Capacity       int
	Tokens         int
	RefillRate     int
	RefillInterval time.Duration
	LastRefill     time.Time
}

// NewTokenBucket returns a full bucket anchored at now
func NewTokenBucket(capacity, refillRate int, refillInterval time.Duration, now time.Time) TokenBucket {
	return TokenBucket{
		Capacity:       capacity,
		Tokens:         capacity,
		RefillRate:     refillRate,
		RefillInterval: refillInterval,
		LastRefill:     now,
	}
}

// refill returns the bucket state after crediting whole elapsed intervals.
// Tokens never exceed Capacity.
func (b TokenBucket) refill(now time.Time) TokenBucket {
	if b.RefillInterval <= 0 {
		return b
	}

	elapsed := now.Sub(b.LastRefill)
	intervals := int(elapsed / b.RefillInterval)
	if intervals <= 0 {
		return b
	}

	b.Tokens += intervals * b.RefillRate
	if b.Tokens > b.Capacity {
		b.Tokens = b.Capacity
	}
	b.LastRefill = b.LastRefill.Add(time.Duration(intervals) * b.RefillInterval)
	return b
}

// Consume attempts to take n tokens at the given time. It returns the new
// bucket state and whether the tokens were granted; on refusal the state
// still reflects any refill that occurred.
func (b TokenBucket) Consume(n int, now time.Time) (TokenBucket, bool) {
	next := b.refill(now)
	if next.Tokens < n {
		return next, false
	}
	next.Tokens -= n
	return next, true
}

// Remaining returns the token count after refill at the given time, without
// consuming anything.
func (b TokenBucket) Remaining(now time.Time) int {
	return b.refill(now).Tokens
}
