package dispatch

import (
	"sync"
	"time"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

const (
	defaultBurst          = 5
	defaultRefillInterval = 10 * time.Second
)

// throttle gates interactions per user with one token bucket each. Buckets
// are created on first sight and pruned when they return to full capacity.
type throttle struct {
	mu       sync.Mutex
	buckets  map[types.UserID]model.TokenBucket
	capacity int
	refill   int
	interval time.Duration
	clock    func() time.Time
}

func newThrottle(capacity, refill int, interval time.Duration, clock func() time.Time) *throttle {
	return &throttle{
		buckets:  make(map[types.UserID]model.TokenBucket),
		capacity: capacity,
		refill:   refill,
		interval: interval,
		clock:    clock,
	}
}

// allow consumes one token for the user, reporting whether the interaction
// may proceed.
func (t *throttle) allow(user types.UserID) bool {
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[user]
	if !ok {
		bucket = model.NewTokenBucket(t.capacity, t.refill, t.interval, now)
	}

	next, ok := bucket.Consume(1, now)
	t.buckets[user] = next
	return ok
}

// prune drops buckets that have refilled to capacity. The cleanup worker
// calls this periodically so idle users do not accumulate.
func (t *throttle) prune() int {
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int
	for user, bucket := range t.buckets {
		if bucket.Remaining(now) >= t.capacity {
			delete(t.buckets, user)
			removed++
		}
	}
	return removed
}
