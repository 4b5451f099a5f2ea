package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "tickets", nil)
	assert.Error(t, err)

	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	_, err = NewPublisher(nc, "", nil)
	assert.Error(t, err)

	p, err := NewPublisher(nc, "tickets", nil)
	require.NoError(t, err)
	assert.Equal(t, "tickets.checked", p.Subject())
}

func TestPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("tickets.checked")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p, err := NewPublisher(nc, "tickets", logging.NewNop())
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	report := &detector.Report{
		ID:        "1234",
		Duplicate: true,
		Closest:   &detector.Neighbor{ID: "987", Distance: 0.0121, IsDuplicate: true},
		Threshold: 0.03,
		Stored:    true,
	}

	ctx := logging.WithRequestID(context.Background(), "req-1")
	require.NoError(t, p.Publish(ctx, report))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "req-1", msg.Header.Get(RequestIDHeader))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "1234", got["id"])
	assert.Equal(t, true, got["duplicate"])
	assert.Equal(t, "987", got["closest_id"])
	assert.Equal(t, 0.0121, got["closest_distance"])
	assert.Equal(t, 0.03, got["threshold"])
	assert.Equal(t, true, got["stored"])
	assert.Equal(t, "2024-05-01T10:00:00Z", got["checked_at"])
}

func TestPublisher_PublishNoNeighbours(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("alerts.checked")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p, err := NewPublisher(nc, "alerts", nil)
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), &detector.Report{ID: "1", Threshold: 0.03}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, msg.Header.Get(RequestIDHeader))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.NotContains(t, got, "closest_id")
	assert.NotContains(t, got, "closest_distance")
	assert.Equal(t, false, got["duplicate"])
}

func TestPublisher_ClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	p, err := NewPublisher(nc, "tickets", nil)
	require.NoError(t, err)
	nc.Close()

	err = p.Publish(context.Background(), &detector.Report{ID: "1"})
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestConnect(t *testing.T) {
	server := startTestNATSServer(t)

	p, err := Connect(config.EventsConfig{
		Enabled:       true,
		URL:           server.ClientURL(),
		SubjectPrefix: "tickets",
	}, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), &detector.Report{ID: "1"}))
	assert.NoError(t, p.Close())
}

func TestNewCheckedEvent_UTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ev := NewCheckedEvent(&detector.Report{ID: "1"}, time.Date(2024, 5, 1, 12, 0, 0, 0, loc))
	assert.Equal(t, time.UTC, ev.CheckedAt.Location())
	assert.Equal(t, 10, ev.CheckedAt.Hour())
}
