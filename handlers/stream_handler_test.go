package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services/stream"
)

func newStreamServer(t *testing.T, hub *stream.Broadcaster, allowedOrigins []string) *httptest.Server {
	t.Helper()
	handler := NewStreamHandler(hub, allowedOrigins, 0, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandleWebSocket_RelaysBroadcasts(t *testing.T) {
	hub := stream.NewBroadcaster(zap.NewNop())
	srv := newStreamServer(t, hub, []string{"*"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Whether the broadcast lands before or after the server-side subscribe,
	// the client sees it: live delivery in one ordering, replay in the other.
	hub.Broadcast(models.NewPositionsSnapshot([]models.Position{
		{Symbol: "NIFTY25AUG25000CE", Quantity: -50, AveragePrice: 100, LastPrice: 80, MTM: 1000},
	}, models.SourcePrimary, models.ReliabilityLive))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var snapshot models.PositionsSnapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, models.SourcePrimary, snapshot.Source)
	assert.Equal(t, models.ReliabilityLive, snapshot.Reliability)
	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, "NIFTY25AUG25000CE", snapshot.Positions[0].Symbol)
	assert.Equal(t, float64(1000), snapshot.TotalMTM)
}

func TestHandleWebSocket_ReplaysLatestToNewClient(t *testing.T) {
	hub := stream.NewBroadcaster(zap.NewNop())
	srv := newStreamServer(t, hub, []string{"*"})

	hub.Broadcast(models.NewPositionsSnapshot([]models.Position{
		{Symbol: "NIFTY25AUG24400PE", Quantity: -50, AveragePrice: 90, LastPrice: 95, MTM: -250},
	}, models.SourceCache, models.ReliabilityDegraded))

	// Connect after the broadcast: the hub replays the latest snapshot so the
	// client does not wait a full poll interval for its first frame.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var snapshot models.PositionsSnapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, models.SourceCache, snapshot.Source)
	assert.Equal(t, models.ReliabilityDegraded, snapshot.Reliability)
	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, "NIFTY25AUG24400PE", snapshot.Positions[0].Symbol)
}

func TestHandleWebSocket_OriginChecks(t *testing.T) {
	hub := stream.NewBroadcaster(zap.NewNop())
	srv := newStreamServer(t, hub, []string{"http://localhost:3000"})

	t.Run("disallowed origin rejected", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://evil.example")

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
		if conn != nil {
			conn.Close()
		}
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("allowed origin accepted", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://localhost:3000")

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
		require.NoError(t, err)
		conn.Close()
	})

	t.Run("no origin accepted", func(t *testing.T) {
		// Non-browser clients send no Origin header at all.
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestHandleWebSocket_UnsubscribesOnDisconnect(t *testing.T) {
	hub := stream.NewBroadcaster(zap.NewNop())
	srv := newStreamServer(t, hub, []string{"*"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond)
}
