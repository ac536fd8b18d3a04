package agent

import (
	"time"

	"golang.org/x/time/rate"
)

// PreviewThrottle limits intermediate previews to one per interval for each
// tool call. Terminal previews bypass it.
type PreviewThrottle struct {
	limit    rate.Limit
	now      func() time.Time
	limiters map[string]*rate.Limiter
}

func NewPreviewThrottle(interval time.Duration, now func() time.Time) *PreviewThrottle {
	if now == nil {
		now = time.Now
	}
	return &PreviewThrottle{
		limit:    rate.Every(interval),
		now:      now,
		limiters: map[string]*rate.Limiter{},
	}
}

func (t *PreviewThrottle) limiter(id string) *rate.Limiter {
	l, ok := t.limiters[id]
	if !ok {
		l = rate.NewLimiter(t.limit, 1)
		t.limiters[id] = l
	}
	return l
}

// Due reports whether a preview for id would be allowed now.
func (t *PreviewThrottle) Due(id string) bool {
	if t.limit == rate.Inf {
		return true
	}
	return t.limiter(id).TokensAt(t.now()) >= 1
}

// Allow consumes the slot for id if one is available.
func (t *PreviewThrottle) Allow(id string) bool {
	if t.limit == rate.Inf {
		return true
	}
	return t.limiter(id).AllowN(t.now(), 1)
}

// Done forgets id once its call has been flushed.
func (t *PreviewThrottle) Done(id string) {
	delete(t.limiters, id)
}
