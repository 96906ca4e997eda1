package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterPoolEvictsIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newLimiterPool(10, time.Minute)
	p.now = func() time.Time { return now }

	p.Allow("198.51.100.1")
	p.Allow("198.51.100.2")
	require.Equal(t, 2, p.size())

	now = now.Add(30 * time.Second)
	p.Allow("198.51.100.2")

	now = now.Add(45 * time.Second)
	for i := 0; i < pruneEvery; i++ {
		p.Allow("203.0.113.9")
	}

	// .1 was idle for 75s, .2 only for 45s
	require.Equal(t, 2, p.size())
	_, ok := p.m["198.51.100.1"]
	require.False(t, ok)
	_, ok = p.m["198.51.100.2"]
	require.True(t, ok)
}

func TestLimiterPoolBoundedByActiveClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newLimiterPool(10, time.Second)
	p.now = func() time.Time { return now }

	for i := 0; i < 10*pruneEvery; i++ {
		p.Allow(time.Duration(i).String())
		now = now.Add(time.Millisecond)
	}

	// only clients seen within the last second and the sweep interval may remain
	require.LessOrEqual(t, p.size(), 1000+pruneEvery)
}
