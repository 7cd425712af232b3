package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"b3tr-store/internal/metrics"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Registry owns the live checkout sessions.
type Registry struct {
	svc *Services
	ttl time.Duration
	now func() time.Time

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(svc *Services, ttl time.Duration) *Registry {
	root, cancel := context.WithCancel(context.Background())
	return &Registry{
		svc:      svc,
		ttl:      ttl,
		now:      time.Now,
		root:     root,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session, connecting account when one is given.
func (r *Registry) Create(ctx context.Context, account string) (*Session, error) {
	s := newSession(uuid.NewString(), r.svc, r.root, &r.wg, r.now())

	if strings.TrimSpace(account) != "" {
		if _, err := s.Connect(ctx, account); err != nil {
			return nil, fmt.Errorf("Registry.Create: %w", err)
		}
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.CheckoutSessions.Set(float64(r.Len()))

	log.WithField("session_id", s.ID).Info("Checkout session created")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes the session and stops any receipt polling it owns.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.CheckoutSessions.Set(float64(r.Len()))
	s.Close()
	log.WithField("session_id", id).Info("Checkout session closed")
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire closes sessions idle for longer than the TTL and returns how many were removed.
func (r *Registry) Expire() int {
	now := r.now()

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.expired(now, r.ttl) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	metrics.CheckoutSessions.Set(float64(r.Len()))
	if len(stale) > 0 {
		log.WithField("sessions", len(stale)).Info("Expired idle checkout sessions")
	}
	return len(stale)
}

// Run expires idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Expire()
		}
	}
}

// Shutdown rejects new session events and waits for transactions already
// awaiting their receipt to be recorded. Polls still running when ctx is done
// are cancelled and those purchases stay unrecorded.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	metrics.CheckoutSessions.Set(0)

	inFlight := 0
	for _, s := range sessions {
		if s.drain() {
			inFlight++
		}
	}
	if inFlight > 0 {
		log.WithField("sessions", inFlight).Info("Waiting for purchases awaiting their receipt")
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("Shutdown deadline reached, abandoning receipt polls")
	}
	r.cancel()
	<-done
	r.svc.Recorder.Wait()
}

// Close stops every session's polling at once.
func (r *Registry) Close() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Shutdown(ctx)
}
