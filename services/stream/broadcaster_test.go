package stream

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasanthk84/oi-analyzer/models"
	"go.uber.org/zap"
)

func liveSnapshot(mtm float64) models.PositionsSnapshot {
	return models.NewPositionsSnapshot([]models.Position{
		{Symbol: "NIFTY25AUG24700CE", Quantity: 50, MTM: mtm},
	}, models.SourcePrimary, models.ReliabilityLive)
}

func TestBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	var first, second []models.PositionsSnapshot
	hub.Subscribe(func(s models.PositionsSnapshot) { first = append(first, s) })
	hub.Subscribe(func(s models.PositionsSnapshot) { second = append(second, s) })

	hub.Broadcast(liveSnapshot(500))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, float64(500), first[0].TotalMTM)
}

func TestBroadcaster_ReplaysLatestToNewSubscriber(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	hub.Broadcast(liveSnapshot(500))
	hub.Broadcast(liveSnapshot(750))

	var got []models.PositionsSnapshot
	hub.Subscribe(func(s models.PositionsSnapshot) { got = append(got, s) })

	require.Len(t, got, 1, "subscriber receives the latest snapshot immediately")
	assert.Equal(t, float64(750), got[0].TotalMTM)
}

func TestBroadcaster_NoReplayBeforeFirstBroadcast(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	var got []models.PositionsSnapshot
	hub.Subscribe(func(s models.PositionsSnapshot) { got = append(got, s) })

	assert.Empty(t, got)

	_, ok := hub.Latest()
	assert.False(t, ok)
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	var got int
	unsubscribe := hub.Subscribe(func(models.PositionsSnapshot) { got++ })

	hub.Broadcast(liveSnapshot(500))
	unsubscribe()
	hub.Broadcast(liveSnapshot(750))

	assert.Equal(t, 1, got)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	unsubscribe := hub.Subscribe(func(models.PositionsSnapshot) {})
	other := hub.Subscribe(func(models.PositionsSnapshot) {})
	_ = other

	unsubscribe()
	unsubscribe()

	assert.Equal(t, 1, hub.SubscriberCount())
}

// After unsubscribe returns, the callback must never fire again, even with
// broadcasts racing the unsubscribe on another goroutine.
func TestBroadcaster_UnsubscribeIsDeterministicUnderConcurrency(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	var delivered int64
	unsubscribe := hub.Subscribe(func(models.PositionsSnapshot) {
		atomic.AddInt64(&delivered, 1)
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.Broadcast(liveSnapshot(500))
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	unsubscribe()
	frozen := atomic.LoadInt64(&delivered)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, frozen, atomic.LoadInt64(&delivered))

	close(stop)
	wg.Wait()
}

func TestBroadcaster_LatestTracksNewestSnapshot(t *testing.T) {
	hub := NewBroadcaster(zap.NewNop())

	hub.Broadcast(liveSnapshot(500))
	hub.Broadcast(models.EmptySnapshot())

	latest, ok := hub.Latest()
	require.True(t, ok)
	assert.Equal(t, models.SourceNone, latest.Source, "empty snapshots are broadcast and remembered too")
}
