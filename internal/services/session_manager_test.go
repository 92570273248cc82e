package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"registration-service/internal/config"
	"registration-service/internal/location"
)

func managerConfig(ttl time.Duration) *config.Config {
	return &config.Config{
		SubmitRadiusMeters:  50,
		MonitorRadiusMeters: 100,
		CheckInterval:       5 * time.Second,
		MonitorMovementMin:  10,
		WatchMovementMin:    5,
		LocationTimeout:     time.Second,
		SettleDelay:         time.Millisecond,
		SessionTTL:          ttl,
	}
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m := NewSessionManager(&fakeReader{}, nil, nil, managerConfig(30*time.Minute))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess.Provider)
	require.NotNil(t, sess.Monitor)
	require.NotNil(t, sess.Negotiator)
	t.Cleanup(func() { m.Close(sess.ID) })

	require.Same(t, sess, m.Get(sess.ID))
	require.Nil(t, m.Get(uuid.New()))
}

func TestSessionManager_CloseStopsMonitor(t *testing.T) {
	m := NewSessionManager(&fakeReader{}, nil, nil, managerConfig(30*time.Minute))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	m.Close(sess.ID)
	require.Nil(t, m.Get(sess.ID))

	// A fix reported after close must not reach the stopped monitor.
	sess.Provider.Report(location.Fix{Latitude: -5.2, Longitude: 119.5, Accuracy: 5})
	require.Nil(t, sess.Monitor.CurrentSample())
}

func TestSessionManager_ReapsIdleSessions(t *testing.T) {
	m := NewSessionManager(&fakeReader{}, nil, nil, managerConfig(10*time.Millisecond))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	m.reap()
	require.Nil(t, m.Get(sess.ID))
}

func TestSessionManager_TouchKeepsSessionAlive(t *testing.T) {
	m := NewSessionManager(&fakeReader{}, nil, nil, managerConfig(time.Hour))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close(sess.ID) })

	m.reap()
	require.NotNil(t, m.Get(sess.ID))
}
