package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// JitterDelay pauses each caller for a random duration in [min, max].
// Callers are not serialized: concurrent workers each take their own pause.
type JitterDelay struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.RWMutex
}

func NewJitterDelay(minDelay, maxDelay time.Duration) *JitterDelay {
	j := &JitterDelay{}
	j.SetDelay(minDelay, maxDelay)
	return j
}

func (j *JitterDelay) Wait(ctx context.Context) error {
	return Sleep(ctx, j.Next())
}

func (j *JitterDelay) SetDelay(min, max time.Duration) {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.minDelay = min
	j.maxDelay = max
}

// Next returns the next pause without sleeping.
func (j *JitterDelay) Next() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.maxDelay <= j.minDelay {
		return j.minDelay
	}
	delta := j.maxDelay - j.minDelay
	return j.minDelay + time.Duration(rand.Int64N(int64(delta)+1))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
