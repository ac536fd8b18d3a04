package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviewThrottle(t *testing.T) {
	clock := newFakeClock()
	th := NewPreviewThrottle(100*time.Millisecond, clock.Now)

	assert.True(t, th.Due("a"))
	assert.True(t, th.Allow("a"))
	assert.False(t, th.Due("a"))
	assert.False(t, th.Allow("a"))

	// Other calls are throttled independently.
	assert.True(t, th.Allow("b"))

	clock.Advance(50 * time.Millisecond)
	assert.False(t, th.Allow("a"))

	clock.Advance(100 * time.Millisecond)
	assert.True(t, th.Due("a"))
	assert.True(t, th.Allow("a"))
	assert.False(t, th.Allow("a"))

	th.Done("a")
	assert.True(t, th.Allow("a"))
}

func TestPreviewThrottleUnlimited(t *testing.T) {
	th := NewPreviewThrottle(0, nil)
	for range 5 {
		assert.True(t, th.Due("a"))
		assert.True(t, th.Allow("a"))
	}
}
