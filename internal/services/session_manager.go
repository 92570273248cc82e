package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"registration-service/internal/config"
	"registration-service/internal/location"
	"registration-service/internal/metrics"
	"registration-service/internal/permission"
	"registration-service/internal/repository"
	"registration-service/internal/storage"
)

// Session bundles the per-form-session instances: the device's push
// provider, the location service over it, the permission negotiator, the
// detection engine with its throttle state, and the background monitor.
// All of it is discarded together on teardown.
type Session struct {
	ID         uuid.UUID
	Provider   *location.PushProvider
	Location   *location.Service
	Negotiator *permission.Negotiator
	Dedup      *DedupService
	Monitor    *MonitorService

	mu       sync.Mutex
	lastSeen time.Time
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// teardown releases the session's long-lived resources: the watch
// subscription and any pending permission request.
func (s *Session) teardown() {
	s.Monitor.Stop()
	s.Negotiator.Close()
}

// SessionManager creates and reaps form sessions. Sessions idle longer
// than the TTL are torn down so watch subscriptions never leak.
type SessionManager struct {
	reader  repository.RegistrationReader
	refset  *storage.RefsetCache
	metrics *metrics.Collector
	cfg     *config.Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionManager creates an empty manager.
func NewSessionManager(reader repository.RegistrationReader, refset *storage.RefsetCache, collector *metrics.Collector, cfg *config.Config) *SessionManager {
	return &SessionManager{
		reader:   reader,
		refset:   refset,
		metrics:  collector,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create wires a new session, starts its monitor and opens the permission
// negotiation.
func (m *SessionManager) Create(ctx context.Context) (*Session, error) {
	provider := location.NewPushProvider()
	locSvc := location.NewService(provider, m.metrics)
	dedup := NewDedupService(m.reader, m.refset, m.metrics, DedupConfig{
		SubmitRadiusMeters:  m.cfg.SubmitRadiusMeters,
		MonitorRadiusMeters: m.cfg.MonitorRadiusMeters,
		CheckInterval:       m.cfg.CheckInterval,
		MovementMin:         m.cfg.MonitorMovementMin,
	})
	monitor := NewMonitorService(locSvc, dedup, m.cfg.WatchMovementMin, m.cfg.LocationTimeout)
	if err := monitor.Start(); err != nil {
		return nil, err
	}
	negotiator := permission.NewNegotiator(locSvc, m.cfg.SettleDelay, m.cfg.LocationTimeout, permission.Callbacks{})

	sess := &Session{
		ID:         uuid.New(),
		Provider:   provider,
		Location:   locSvc,
		Negotiator: negotiator,
		Dedup:      dedup,
		Monitor:    monitor,
		lastSeen:   time.Now(),
	}
	negotiator.Open(ctx)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()
	return sess, nil
}

// Get returns a live session and refreshes its idle timer, or nil.
func (m *SessionManager) Get(id uuid.UUID) *Session {
	m.mu.Lock()
	sess := m.sessions[id]
	m.mu.Unlock()
	if sess != nil {
		sess.Touch()
	}
	return sess
}

// Close tears a session down explicitly.
func (m *SessionManager) Close(id uuid.UUID) {
	m.mu.Lock()
	sess := m.sessions[id]
	delete(m.sessions, id)
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()
	if sess != nil {
		sess.teardown()
	}
}

// StartJanitor reaps idle sessions until ctx is cancelled.
func (m *SessionManager) StartJanitor(ctx context.Context) {
	interval := m.cfg.SessionTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reap()
			}
		}
	}()
}

func (m *SessionManager) reap() {
	cutoff := time.Now().Add(-m.cfg.SessionTTL)
	var expired []*Session

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	for _, sess := range expired {
		sess.teardown()
	}
	if len(expired) > 0 {
		log.Printf("Reaped %d idle form sessions", len(expired))
	}
}
