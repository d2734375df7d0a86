package intercept

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, Cooldown: cooldown})
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, CircuitClosed, b.Status())
	b.RecordFailure()
	assert.Equal(t, CircuitClosed, b.Status())
	b.RecordFailure()
	assert.Equal(t, CircuitOpen, b.Status())
	assert.False(t, b.Allow(), "open circuit routes native without attempting the backend")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.State().ConsecutiveFailures)

	// Two more failures stay under the threshold after the reset.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, CircuitClosed, b.Status())
}

func TestBreaker_CooldownGrantsSingleProbe(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	require.Equal(t, CircuitOpen, b.Status())

	assert.False(t, b.Allow(), "before cooldown the circuit stays open")

	*now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "after cooldown one probe is granted")
	assert.Equal(t, CircuitHalfOpen, b.Status())
	assert.False(t, b.Allow(), "second caller must not get a concurrent probe")
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*now = now.Add(time.Minute)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, CircuitClosed, b.Status())
	assert.Equal(t, 0, b.State().ConsecutiveFailures)
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*now = now.Add(time.Minute)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, CircuitOpen, b.Status())
	assert.False(t, b.Allow(), "a fresh cooldown starts after a failed probe")

	*now = now.Add(time.Minute)
	assert.True(t, b.Allow())
}

func TestBreaker_RestoreRoundTrip(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	b.RecordFailure()
	b.RecordFailure()

	state := b.State()
	restored := NewBreaker(BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute})
	restored.Restore(state)
	assert.Equal(t, 2, restored.State().ConsecutiveFailures)
	assert.Equal(t, CircuitClosed, restored.Status())
}

func TestBreaker_RestoreDemotesHalfOpenToOpen(t *testing.T) {
	restored := NewBreaker(DefaultBreakerConfig())
	restored.Restore(BreakerState{Circuit: CircuitHalfOpen, ConsecutiveFailures: 4})
	assert.Equal(t, CircuitOpen, restored.Status())
}

func TestBreaker_ConcurrentFailuresCountExactly(t *testing.T) {
	b, _ := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, b.State().ConsecutiveFailures)
}
