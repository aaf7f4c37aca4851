package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutHit struct {
	roomID     string
	playerID   string
	turnNumber int
}

func newTestTimer(t *testing.T) (*LocalTurnTimer, chan timeoutHit, *atomic.Int32) {
	t.Helper()
	timer := NewLocalTurnTimer(5 * time.Millisecond)
	t.Cleanup(timer.Close)
	hits := make(chan timeoutHit, 8)
	ticks := &atomic.Int32{}
	timer.SetHandlers(
		func(roomID, playerID string, turnNumber int) {
			hits <- timeoutHit{roomID, playerID, turnNumber}
		},
		func(string, string, time.Duration) { ticks.Add(1) },
	)
	return timer, hits, ticks
}

func TestLocalTurnTimer_FiresTimeout(t *testing.T) {
	timer, hits, ticks := newTestTimer(t)
	timer.StartTimer("r1", "p1", 3, 40*time.Millisecond)

	info, ok := timer.GetTimerInfo("r1")
	require.True(t, ok)
	assert.Equal(t, "p1", info.PlayerID)
	assert.Equal(t, 3, info.TurnNumber)
	assert.Greater(t, info.Remaining, time.Duration(0))

	select {
	case hit := <-hits:
		assert.Equal(t, timeoutHit{"r1", "p1", 3}, hit)
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	assert.Positive(t, ticks.Load())
	_, ok = timer.GetTimerInfo("r1")
	assert.False(t, ok)
}

func TestLocalTurnTimer_StopAndReplace(t *testing.T) {
	timer, hits, _ := newTestTimer(t)

	timer.StartTimer("r1", "p1", 1, 30*time.Millisecond)
	timer.StopTimer("r1")
	timer.StartTimer("r2", "p1", 1, 30*time.Millisecond)
	timer.StartTimer("r2", "p2", 2, 60*time.Millisecond)

	select {
	case hit := <-hits:
		assert.Equal(t, timeoutHit{"r2", "p2", 2}, hit, "only the latest timer of r2 fires")
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	select {
	case hit := <-hits:
		t.Fatalf("unexpected timeout %+v", hit)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocalTurnTimer_Extend(t *testing.T) {
	timer, hits, _ := newTestTimer(t)

	start := time.Now()
	timer.StartTimer("r1", "p1", 1, 40*time.Millisecond)
	timer.ExtendTimer("r1", 120*time.Millisecond)
	timer.ExtendTimer("missing", time.Second)

	info, ok := timer.GetTimerInfo("r1")
	require.True(t, ok)
	assert.Greater(t, info.Remaining, 100*time.Millisecond)

	select {
	case <-hits:
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("extended timeout never fired")
	}
}

func TestNopTurnTimer(t *testing.T) {
	var timer TurnTimer = NopTurnTimer{}
	timer.StartTimer("r1", "p1", 1, time.Millisecond)
	_, ok := timer.GetTimerInfo("r1")
	assert.False(t, ok)
}
