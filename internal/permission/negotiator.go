// Package permission drives the location-permission negotiation flow shown
// to attendees before the registration form unlocks. It is an explicit state
// machine so the single-flight and retry rules hold regardless of how often
// the UI layer re-triggers it.
package permission

import (
	"context"
	"log"
	"sync"
	"time"

	"registration-service/internal/location"
	"registration-service/internal/models"
)

// State is the negotiation state.
type State string

const (
	StateUnknown   State = "unknown"
	StatePrompting State = "prompting"
	StateGranted   State = "granted"
	StateDenied    State = "denied"
)

// RemediationInstructions is shown alongside the Denied state so the user
// can re-enable location access in browser settings before retrying.
const RemediationInstructions = "Location access is blocked. Open your browser's site settings, " +
	"set Location to Allow for this page, then tap Retry. On iOS also check " +
	"Settings > Privacy & Security > Location Services."

// oneShot is the slice of the location service the negotiator needs.
type oneShot interface {
	GetOnce(ctx context.Context, opts location.Options) (models.LocationSample, error)
}

// Callbacks are invoked on state transitions. OnGranted fires exactly once
// per transition into Granted. OnSoftFailure signals a degradation the
// caller may proceed through without location.
type Callbacks struct {
	OnGranted     func(models.LocationSample)
	OnDenied      func(instructions string)
	OnSoftFailure func(reason location.FailureReason)
}

// Negotiator owns one permission flow instance. At most one location
// request is in flight at a time; concurrent triggers are no-ops.
type Negotiator struct {
	loc            oneShot
	settleDelay    time.Duration
	requestTimeout time.Duration
	cbs            Callbacks

	mu         sync.Mutex
	state      State
	requesting bool
	timer      *time.Timer
	closed     bool
}

// NewNegotiator creates a negotiator in the Unknown state. settleDelay
// postpones the automatic request so the modal can paint before the browser
// permission prompt appears.
func NewNegotiator(loc oneShot, settleDelay, requestTimeout time.Duration, cbs Callbacks) *Negotiator {
	return &Negotiator{
		loc:            loc,
		settleDelay:    settleDelay,
		requestTimeout: requestTimeout,
		cbs:            cbs,
		state:          StateUnknown,
	}
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Open triggers the automatic permission request. It only acts from the
// Unknown state; while Prompting, Granted, or Denied it is a no-op (a
// denial requires an explicit Retry).
func (n *Negotiator) Open(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.state != StateUnknown || n.requesting || n.timer != nil {
		return
	}
	n.timer = time.AfterFunc(n.settleDelay, func() {
		n.mu.Lock()
		n.timer = nil
		n.mu.Unlock()
		n.request(ctx)
	})
}

// Retry re-enters Prompting from Denied on explicit user action. From any
// other state it is a no-op.
func (n *Negotiator) Retry(ctx context.Context) {
	n.mu.Lock()
	if n.closed || n.state != StateDenied || n.requesting {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()
	n.request(ctx)
}

// Close tears the negotiator down, cancelling a pending automatic request.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// request performs the single-shot location request and applies the
// transition rules for its outcome.
func (n *Negotiator) request(ctx context.Context) {
	n.mu.Lock()
	if n.closed || n.requesting {
		n.mu.Unlock()
		return
	}
	n.requesting = true
	n.state = StatePrompting
	n.mu.Unlock()

	sample, err := n.loc.GetOnce(ctx, location.Options{
		EnableHighAccuracy: true,
		Timeout:            n.requestTimeout,
	})

	n.mu.Lock()
	n.requesting = false
	if n.closed {
		n.mu.Unlock()
		return
	}

	if err == nil {
		granted := n.state != StateGranted
		n.state = StateGranted
		n.mu.Unlock()
		if granted && n.cbs.OnGranted != nil {
			n.cbs.OnGranted(sample)
		}
		return
	}

	f := location.AsFailure(err)
	if f.Reason == location.ReasonPermissionDenied {
		n.state = StateDenied
		n.mu.Unlock()
		if n.cbs.OnDenied != nil {
			n.cbs.OnDenied(RemediationInstructions)
		}
		return
	}

	// Timeouts, unavailable positions and missing capability are soft
	// failures: the flow continues without location.
	n.state = StateUnknown
	n.mu.Unlock()
	log.Printf("Permission request soft failure: %s", f.Reason)
	if n.cbs.OnSoftFailure != nil {
		n.cbs.OnSoftFailure(f.Reason)
	}
}
