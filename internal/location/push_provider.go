package location

import (
	"context"
	"sync"
	"time"
)

// pushEvent is either a fix or a classified failure reported by the device.
type pushEvent struct {
	fix     Fix
	failure *Failure
}

// PushProvider is a Provider fed by fixes the browser reports over HTTP.
// The client posts the output of its geolocation callbacks (or their error
// codes) and pending GetCurrentPosition calls resolve against the stream.
type PushProvider struct {
	mu          sync.Mutex
	capability  Capability
	last        *Fix
	lastAt      time.Time
	undelivered *Failure
	waiters     map[int64]chan pushEvent
	nextWaiter  int64
	watchers    map[WatchID]func(Fix)
	nextWatch   WatchID
}

// NewPushProvider creates an empty provider in the Unknown capability state.
func NewPushProvider() *PushProvider {
	return &PushProvider{
		capability: CapabilityUnknown,
		waiters:    make(map[int64]chan pushEvent),
		watchers:   make(map[WatchID]func(Fix)),
	}
}

// Capability returns the last known capability state.
func (p *PushProvider) Capability() Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capability
}

// SetUnavailable marks the device as having no geolocation capability.
func (p *PushProvider) SetUnavailable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capability = CapabilityUnavailable
}

// Report feeds a device-reported fix to all pending one-shot requests and
// active watches. Reporting any fix marks the capability as available.
func (p *PushProvider) Report(fix Fix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	p.mu.Lock()
	p.capability = CapabilityAvailable
	p.last = &fix
	p.lastAt = time.Now()
	p.undelivered = nil
	waiters := p.waiters
	p.waiters = make(map[int64]chan pushEvent)
	cbs := make([]func(Fix), 0, len(p.watchers))
	for _, cb := range p.watchers {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- pushEvent{fix: fix}
	}
	for _, cb := range cbs {
		cb(fix)
	}
}

// ReportFailure resolves all pending one-shot requests with the given
// failure reason. Watches stay registered; a later fix resumes them. A
// failure arriving while nothing is pending is held for the next request:
// the device's error callback can fire before a delayed request starts, and
// a permission denial must not be lost to that window.
func (p *PushProvider) ReportFailure(reason FailureReason) {
	p.mu.Lock()
	if reason == ReasonUnsupported {
		p.capability = CapabilityUnavailable
	}
	waiters := p.waiters
	p.waiters = make(map[int64]chan pushEvent)
	if len(waiters) == 0 {
		p.undelivered = NewFailure(reason, "reported by device")
	}
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- pushEvent{failure: NewFailure(reason, "reported by device")}
	}
}

// GetCurrentPosition resolves with the next reported fix. A failure held
// from before the request started resolves it immediately, as does a cached
// fix younger than opts.MaximumAge. The caller bounds the wait through ctx;
// expiry resolves as a timeout failure.
func (p *PushProvider) GetCurrentPosition(ctx context.Context, opts Options) (Fix, error) {
	p.mu.Lock()
	if p.capability == CapabilityUnavailable {
		p.mu.Unlock()
		return Fix{}, NewFailure(ReasonUnsupported, "device has no geolocation capability")
	}
	if p.undelivered != nil {
		f := p.undelivered
		p.undelivered = nil
		p.mu.Unlock()
		return Fix{}, f
	}
	if p.last != nil && opts.MaximumAge > 0 && time.Since(p.lastAt) <= opts.MaximumAge {
		fix := *p.last
		p.mu.Unlock()
		return fix, nil
	}
	id := p.nextWaiter
	p.nextWaiter++
	ch := make(chan pushEvent, 1)
	p.waiters[id] = ch
	p.mu.Unlock()

	select {
	case ev := <-ch:
		if ev.failure != nil {
			return Fix{}, ev.failure
		}
		return ev.fix, nil
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
		if ctx.Err() == context.DeadlineExceeded {
			return Fix{}, NewFailure(ReasonTimeout, "no fix reported before deadline")
		}
		return Fix{}, ctx.Err()
	}
}

// WatchPosition registers cb for every subsequently reported fix.
func (p *PushProvider) WatchPosition(cb func(Fix), _ Options) (WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capability == CapabilityUnavailable {
		return 0, NewFailure(ReasonUnsupported, "device has no geolocation capability")
	}
	p.nextWatch++
	id := p.nextWatch
	p.watchers[id] = cb
	return id, nil
}

// ClearWatch removes a watch registration. Unknown IDs are ignored.
func (p *PushProvider) ClearWatch(id WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watchers, id)
}
