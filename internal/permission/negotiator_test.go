package permission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"registration-service/internal/location"
	"registration-service/internal/models"
)

type fakeOneShot struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, opts location.Options) (models.LocationSample, error)
	block chan struct{} // when set, GetOnce blocks until closed
}

func (f *fakeOneShot) GetOnce(ctx context.Context, opts location.Options) (models.LocationSample, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.fn != nil {
		return f.fn(ctx, opts)
	}
	return models.LocationSample{
		Coordinate: models.Coordinate{Latitude: -5.1477, Longitude: 119.4327, AccuracyMeters: 5},
		CapturedAt: time.Now(),
	}, nil
}

func (f *fakeOneShot) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForState(t *testing.T, n *Negotiator, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return n.State() == want },
		2*time.Second, 5*time.Millisecond)
}

func TestOpen_GrantsAndInvokesCallbackOnce(t *testing.T) {
	loc := &fakeOneShot{}
	var granted atomic.Int32
	n := NewNegotiator(loc, time.Millisecond, time.Second, Callbacks{
		OnGranted: func(models.LocationSample) { granted.Add(1) },
	})

	n.Open(context.Background())
	waitForState(t, n, StateGranted)

	// Re-opening after grant must not fire another request.
	n.Open(context.Background())
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, 1, loc.callCount())
	require.Equal(t, int32(1), granted.Load())
}

func TestOpen_DeniedNoAutomaticRetry(t *testing.T) {
	loc := &fakeOneShot{
		fn: func(context.Context, location.Options) (models.LocationSample, error) {
			return models.LocationSample{}, location.NewFailure(location.ReasonPermissionDenied, "")
		},
	}
	instructions := make(chan string, 1)
	n := NewNegotiator(loc, time.Millisecond, time.Second, Callbacks{
		OnDenied: func(s string) { instructions <- s },
	})

	n.Open(context.Background())
	waitForState(t, n, StateDenied)
	select {
	case s := <-instructions:
		require.Equal(t, RemediationInstructions, s)
	case <-time.After(time.Second):
		t.Fatal("OnDenied was not invoked")
	}

	// Open from Denied is a no-op; only Retry re-enters Prompting.
	n.Open(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, loc.callCount())
}

func TestOpen_DenialBeforeSettleDelayStillDenies(t *testing.T) {
	// A fast device can post its permission error before the settle-delayed
	// request even starts. The denial must survive that window and land the
	// machine in Denied, not soft-fail back to Unknown.
	provider := location.NewPushProvider()
	svc := location.NewService(provider, nil)
	instructions := make(chan string, 1)
	n := NewNegotiator(svc, 50*time.Millisecond, time.Second, Callbacks{
		OnDenied: func(s string) { instructions <- s },
	})
	defer n.Close()

	provider.ReportFailure(location.ReasonPermissionDenied)
	n.Open(context.Background())

	waitForState(t, n, StateDenied)
	select {
	case s := <-instructions:
		require.Equal(t, RemediationInstructions, s)
	case <-time.After(time.Second):
		t.Fatal("OnDenied was not invoked")
	}
}

func TestRetry_FromDeniedRepeatsRequest(t *testing.T) {
	var denied atomic.Bool
	loc := &fakeOneShot{}
	loc.fn = func(context.Context, location.Options) (models.LocationSample, error) {
		if denied.CompareAndSwap(false, true) {
			return models.LocationSample{}, location.NewFailure(location.ReasonPermissionDenied, "")
		}
		return models.LocationSample{
			Coordinate: models.Coordinate{Latitude: 1, Longitude: 1, AccuracyMeters: 1},
		}, nil
	}
	n := NewNegotiator(loc, time.Millisecond, time.Second, Callbacks{})

	n.Open(context.Background())
	waitForState(t, n, StateDenied)

	n.Retry(context.Background())
	waitForState(t, n, StateGranted)
	require.Equal(t, 2, loc.callCount())
}

func TestSoftFailure_AllowsReopen(t *testing.T) {
	loc := &fakeOneShot{
		fn: func(context.Context, location.Options) (models.LocationSample, error) {
			return models.LocationSample{}, location.NewFailure(location.ReasonTimeout, "")
		},
	}
	var soft atomic.Value
	n := NewNegotiator(loc, time.Millisecond, time.Second, Callbacks{
		OnSoftFailure: func(r location.FailureReason) { soft.Store(r) },
	})

	n.Open(context.Background())
	require.Eventually(t, func() bool {
		r, ok := soft.Load().(location.FailureReason)
		return ok && r == location.ReasonTimeout
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, StateUnknown, n.State())

	// A soft failure is not a denial: the flow may auto-request again.
	n.Open(context.Background())
	require.Eventually(t, func() bool { return loc.callCount() == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestOpen_SingleFlight(t *testing.T) {
	loc := &fakeOneShot{block: make(chan struct{})}
	n := NewNegotiator(loc, time.Millisecond, time.Second, Callbacks{})

	n.Open(context.Background())
	waitForState(t, n, StatePrompting)

	// Further triggers while a request is pending must be no-ops.
	n.Open(context.Background())
	n.Retry(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, loc.callCount())

	close(loc.block)
	waitForState(t, n, StateGranted)
	require.Equal(t, 1, loc.callCount())
}

func TestClose_CancelsPendingRequest(t *testing.T) {
	loc := &fakeOneShot{}
	n := NewNegotiator(loc, time.Hour, time.Second, Callbacks{})

	n.Open(context.Background())
	n.Close()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, loc.callCount())
	require.Equal(t, StateUnknown, n.State())
}
