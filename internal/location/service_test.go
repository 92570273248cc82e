package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"registration-service/internal/models"
)

type fakeProvider struct {
	capability Capability
	getFn      func(ctx context.Context, opts Options) (Fix, error)
	watchCbs   map[WatchID]func(Fix)
	nextID     WatchID
	cleared    []WatchID
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		capability: CapabilityAvailable,
		watchCbs:   make(map[WatchID]func(Fix)),
	}
}

func (f *fakeProvider) GetCurrentPosition(ctx context.Context, opts Options) (Fix, error) {
	if f.getFn != nil {
		return f.getFn(ctx, opts)
	}
	return Fix{Latitude: -5.1477, Longitude: 119.4327, Accuracy: 8}, nil
}

func (f *fakeProvider) WatchPosition(cb func(Fix), _ Options) (WatchID, error) {
	f.nextID++
	f.watchCbs[f.nextID] = cb
	return f.nextID, nil
}

func (f *fakeProvider) ClearWatch(id WatchID) {
	f.cleared = append(f.cleared, id)
	delete(f.watchCbs, id)
}

func (f *fakeProvider) Capability() Capability { return f.capability }

func (f *fakeProvider) emit(fix Fix) {
	for _, cb := range f.watchCbs {
		cb(fix)
	}
}

func TestGetOnce_ValidFix(t *testing.T) {
	svc := NewService(newFakeProvider(), nil)

	sample, err := svc.GetOnce(context.Background(), Options{Timeout: time.Second})
	require.NoError(t, err)
	require.InDelta(t, -5.1477, sample.Coordinate.Latitude, 1e-9)
	require.InDelta(t, 119.4327, sample.Coordinate.Longitude, 1e-9)
	require.False(t, sample.CapturedAt.IsZero())
}

func TestGetOnce_MalformedFixDropped(t *testing.T) {
	p := newFakeProvider()
	p.getFn = func(context.Context, Options) (Fix, error) {
		return Fix{Latitude: 312.5, Longitude: 119.4, Accuracy: 5}, nil
	}
	svc := NewService(p, nil)

	_, err := svc.GetOnce(context.Background(), Options{Timeout: time.Second})
	require.Error(t, err)
	require.Equal(t, ReasonPositionUnavailable, AsFailure(err).Reason)
}

func TestGetOnce_TimeoutResolvesBeforeDeadlinePlusSlack(t *testing.T) {
	p := newFakeProvider()
	p.getFn = func(ctx context.Context, _ Options) (Fix, error) {
		<-ctx.Done()
		return Fix{}, ctx.Err()
	}
	svc := NewService(p, nil)

	start := time.Now()
	_, err := svc.GetOnce(context.Background(), Options{Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Equal(t, ReasonTimeout, AsFailure(err).Reason)
	require.Less(t, elapsed, 2*time.Second)
}

func TestGetOnce_Unsupported(t *testing.T) {
	p := newFakeProvider()
	p.capability = CapabilityUnavailable
	svc := NewService(p, nil)

	_, err := svc.GetOnce(context.Background(), Options{Timeout: time.Second})
	f := AsFailure(err)
	require.Equal(t, ReasonUnsupported, f.Reason)
	require.True(t, f.Soft())
}

func TestGetOnce_PermissionDeniedIsHard(t *testing.T) {
	p := newFakeProvider()
	p.getFn = func(context.Context, Options) (Fix, error) {
		return Fix{}, NewFailure(ReasonPermissionDenied, "user declined")
	}
	svc := NewService(p, nil)

	_, err := svc.GetOnce(context.Background(), Options{Timeout: time.Second})
	f := AsFailure(err)
	require.Equal(t, ReasonPermissionDenied, f.Reason)
	require.False(t, f.Soft())
}

func TestWatch_ForwardsValidDropsMalformed(t *testing.T) {
	p := newFakeProvider()
	svc := NewService(p, nil)

	var got []models.LocationSample
	sub, err := svc.Watch(func(s models.LocationSample) {
		got = append(got, s)
	}, Options{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p.emit(Fix{Latitude: -5.1, Longitude: 119.4, Accuracy: 10})
	p.emit(Fix{Latitude: 95.0, Longitude: 119.4, Accuracy: 10})  // bad latitude
	p.emit(Fix{Latitude: -5.1, Longitude: 119.4, Accuracy: -1})  // bad accuracy
	p.emit(Fix{Latitude: -5.2, Longitude: 200.1, Accuracy: 10})  // bad longitude
	p.emit(Fix{Latitude: -5.11, Longitude: 119.41, Accuracy: 3})

	require.Len(t, got, 2)
}

func TestWatch_UnsubscribeClearsWatchOnce(t *testing.T) {
	p := newFakeProvider()
	svc := NewService(p, nil)

	sub, err := svc.Watch(func(models.LocationSample) {}, Options{})
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.Len(t, p.cleared, 1)
	require.Empty(t, p.watchCbs)
}
