package panel

import (
	"context"
	"net"
	"sync"

	"github.com/pcanto/dscbridge/internal/message"
)

// LifecycleSubscriber receives every LifecycleEvent a Registry's sessions
// produce, in the order they occur.
type LifecycleSubscriber func(LifecycleEvent)

// Registry tracks the set of live sessions keyed by id (C7): one entry per
// connected panel. It mirrors internal/state.Store's subscriber fan-out
// shape (a mutex-guarded map plus a slice of subscriber funcs invoked
// outside the lock) so the UI facade and notification dispatcher can react
// to connect/disconnect the same way they react to state change events.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	subMu sync.Mutex
	subs  []LifecycleSubscriber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Subscribe registers fn to receive every future LifecycleEvent. Returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn LifecycleSubscriber) (unsubscribe func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subs = append(r.subs, fn)
	idx := len(r.subs) - 1
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if idx < len(r.subs) {
			r.subs[idx] = nil
		}
	}
}

func (r *Registry) publish(ev LifecycleEvent) {
	r.subMu.Lock()
	subs := make([]LifecycleSubscriber, len(r.subs))
	copy(subs, r.subs)
	r.subMu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

// Register records s under its ID. A session already registered under that
// ID is left in place, the new one rejected with ErrDuplicateSession: a
// panel re-sending OpenSession for an ID mid-session is treated as a
// protocol violation by the new connection, not a takeover of the old one.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	if _, exists := r.sessions[s.ID()]; exists {
		r.mu.Unlock()
		return ErrDuplicateSession
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return nil
}

// Deregister removes id from the registry, if present.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Get returns the live session for id, or ErrSessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// IDs returns the IDs of every currently-registered session.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Accept wraps the package-level Accept, registering the resulting session
// under its id and forwarding its lifecycle events to the registry's own
// subscribers (plus deregistering automatically on disconnect) in addition
// to whatever lifecycle handler opts already carries. Callers managing more
// than one session should use this instead of calling Accept directly.
//
// Registration happens inside Accept itself, atomically with the session's
// connect transition: a duplicate id is rejected before SessionConnected
// ever fires, so the loser's connection is closed without emitting any
// lifecycle event and the incumbent session holding that id is left
// untouched (never deregistered, never reported disconnected, never dropped
// from the state store).
func (r *Registry) Accept(ctx context.Context, conn net.Conn, reg *message.Registry, creds Credentials, opts ...Option) (*Session, error) {
	cfg := applySessionConfig(opts)
	userLifecycle := cfg.onLifecycle

	wrapped := append(append([]Option{}, opts...),
		withRegisterHook(r.Register),
		WithLifecycleHandler(func(ev LifecycleEvent) {
			if ev.Kind == SessionDisconnected {
				r.Deregister(ev.SessionID)
			}
			r.publish(ev)
			if userLifecycle != nil {
				userLifecycle(ev)
			}
		}),
	)

	return Accept(ctx, conn, reg, creds, wrapped...)
}
