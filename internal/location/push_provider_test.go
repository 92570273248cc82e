package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushProvider_ReportResolvesPendingRequest(t *testing.T) {
	p := NewPushProvider()

	done := make(chan Fix, 1)
	go func() {
		fix, err := p.GetCurrentPosition(context.Background(), Options{})
		if err == nil {
			done <- fix
		}
	}()

	// Let the goroutine register its waiter before reporting.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.waiters) == 1
	}, time.Second, 5*time.Millisecond)

	p.Report(Fix{Latitude: -5.1477, Longitude: 119.4327, Accuracy: 4})

	select {
	case fix := <-done:
		require.InDelta(t, -5.1477, fix.Latitude, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("pending request was not resolved by Report")
	}
}

func TestPushProvider_CachedFixWithinMaxAge(t *testing.T) {
	p := NewPushProvider()
	p.Report(Fix{Latitude: -5.1, Longitude: 119.4, Accuracy: 7})

	fix, err := p.GetCurrentPosition(context.Background(), Options{MaximumAge: time.Minute})
	require.NoError(t, err)
	require.InDelta(t, -5.1, fix.Latitude, 1e-9)
}

func TestPushProvider_TimeoutWithoutReport(t *testing.T) {
	p := NewPushProvider()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.GetCurrentPosition(ctx, Options{})
	require.Equal(t, ReasonTimeout, AsFailure(err).Reason)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Empty(t, p.waiters)
}

func TestPushProvider_ReportFailurePermissionDenied(t *testing.T) {
	p := NewPushProvider()

	errCh := make(chan error, 1)
	go func() {
		_, err := p.GetCurrentPosition(context.Background(), Options{})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.waiters) == 1
	}, time.Second, 5*time.Millisecond)

	p.ReportFailure(ReasonPermissionDenied)

	select {
	case err := <-errCh:
		require.Equal(t, ReasonPermissionDenied, AsFailure(err).Reason)
	case <-time.After(time.Second):
		t.Fatal("pending request was not resolved by ReportFailure")
	}

	// Capability stays available: denial is about permission, not support.
	require.NotEqual(t, CapabilityUnavailable, p.Capability())
}

func TestPushProvider_FailureBeforeRequestHeldForNext(t *testing.T) {
	p := NewPushProvider()

	// The error callback fires before anything is waiting; the denial must
	// resolve the next request instead of vanishing.
	p.ReportFailure(ReasonPermissionDenied)

	_, err := p.GetCurrentPosition(context.Background(), Options{})
	require.Equal(t, ReasonPermissionDenied, AsFailure(err).Reason)

	// Delivered once: a subsequent request waits for fresh device output.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.GetCurrentPosition(ctx, Options{})
	require.Equal(t, ReasonTimeout, AsFailure(err).Reason)
}

func TestPushProvider_ReportClearsHeldFailure(t *testing.T) {
	p := NewPushProvider()
	p.ReportFailure(ReasonPermissionDenied)
	p.Report(Fix{Latitude: -5.1, Longitude: 119.4, Accuracy: 5})

	fix, err := p.GetCurrentPosition(context.Background(), Options{MaximumAge: time.Minute})
	require.NoError(t, err)
	require.InDelta(t, -5.1, fix.Latitude, 1e-9)
}

func TestPushProvider_UnsupportedReport(t *testing.T) {
	p := NewPushProvider()
	p.ReportFailure(ReasonUnsupported)

	require.Equal(t, CapabilityUnavailable, p.Capability())

	_, err := p.GetCurrentPosition(context.Background(), Options{})
	require.Equal(t, ReasonUnsupported, AsFailure(err).Reason)

	_, err = p.WatchPosition(func(Fix) {}, Options{})
	require.Equal(t, ReasonUnsupported, AsFailure(err).Reason)
}

func TestPushProvider_WatchFanOutAndClear(t *testing.T) {
	p := NewPushProvider()

	var a, b int
	idA, err := p.WatchPosition(func(Fix) { a++ }, Options{})
	require.NoError(t, err)
	_, err = p.WatchPosition(func(Fix) { b++ }, Options{})
	require.NoError(t, err)

	p.Report(Fix{Latitude: 1, Longitude: 1, Accuracy: 1})
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)

	p.ClearWatch(idA)
	p.Report(Fix{Latitude: 2, Longitude: 2, Accuracy: 1})
	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
}
