package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
)

const burstWindow = time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles bursts per identity. It sits in front of the daily quota
// gate and only smooths traffic; the gate owns the actual allowance.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	return &Limiter{store: store, perMinute: perMinute}
}

// Allow reports whether the identity may proceed, and when blocked, how many
// seconds until the window reopens. A zero per-minute limit disables the
// limiter entirely.
func (l *Limiter) Allow(ctx context.Context, id model.Identity) (int64, bool, error) {
	if l.perMinute <= 0 {
		return 0, true, nil
	}
	if !id.Valid() {
		return 0, false, fmt.Errorf("invalid identity")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, windowKey(id), burstWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func windowKey(id model.Identity) string {
	return "burst:min:" + string(id.Kind) + ":" + id.Value
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
