package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(3, 50*time.Millisecond)
	require.True(t, b.allow())

	b.recordFailure()
	b.recordFailure()
	require.False(t, b.isOpen())
	b.recordFailure()
	require.True(t, b.isOpen())
	require.False(t, b.allow())
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)
	b.recordFailure()
	require.True(t, b.isOpen())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.allow()) // transitions to half-open
}

func TestBreakerRecordSuccessCloses(t *testing.T) {
	b := newBreaker(1, time.Second)
	b.recordFailure()
	require.True(t, b.isOpen())
	b.recordSuccess()
	require.False(t, b.isOpen())
	require.True(t, b.allow())
}
