package dashboard

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/storage"
)

func newTestHub(t *testing.T) (*Hub, storage.AlertStore) {
	t.Helper()
	store, err := storage.FromSQL(sqlite.Open(":memory:"))
	require.NoError(t, err)
	return NewHub(store), store
}

func TestBroadcastDropsWhenNoClients(t *testing.T) {
	hub, _ := newTestHub(t)
	// Broadcasting with zero connected clients must not block or panic.
	hub.Broadcast(&model.Alert{Symbol: "BTCUSDT"})
	require.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastFansOutToConnectedClient(t *testing.T) {
	hub, _ := newTestHub(t)
	c := &client{send: make(chan event, 1)}
	hub.mu.Lock()
	hub.clients[c] = true
	hub.mu.Unlock()

	hub.Broadcast(&model.Alert{Symbol: "ETHUSDT", SignalTimestamp: time.Now()})

	select {
	case evt := <-c.send:
		require.Equal(t, "alert", evt.Type)
		alert, ok := evt.Data.(*model.Alert)
		require.True(t, ok, "evt.Data should be an *model.Alert")
		require.Equal(t, "ETHUSDT", alert.Symbol)
	default:
		t.Fatal("expected a buffered alert event for the connected client")
	}
}

func TestMarshalEventRoundTrips(t *testing.T) {
	evt := event{Type: "alert", Data: &model.Alert{Symbol: "BTCUSDT"}}
	b, err := marshalEvent(evt)
	require.NoError(t, err)
	require.NotEmpty(t, b, "expected non-empty JSON")
}
