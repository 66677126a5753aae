package transaction

import (
	"fmt"
	"sync"
	"time"

	"github.com/pcanto/dscbridge/internal/message"
)

// DefaultCommandResponseTimeout bounds how long an outbound CommandResponse
// transaction waits for the panel's reply before aborting with ErrTimeout.
// The protocol otherwise leaves per-transaction deadlines infinite; this is
// the one pattern-specific override the engine applies by default (arm/disarm
// commands are the primary CommandResponse users and must not hang a session
// forever on a dropped reply).
const DefaultCommandResponseTimeout = 5 * time.Second

// Manager holds the transactions live on one session, in the order they were
// opened. It implements the "offer a reply to every pending transaction in
// insertion order, first match wins, else start a new inbound transaction"
// correlation policy. A session holds at most one live transaction per
// correlation key (direction, seq) at a time; Manager does not itself enforce
// that invariant, it relies on the callers of BeginOutbound and Offer to pick
// seq values that don't collide with a still-pending transaction.
type Manager struct {
	registry *message.Registry

	mu      sync.Mutex
	pending []*Transaction
}

// NewManager returns a Manager that resolves new inbound transactions'
// patterns via reg.
func NewManager(reg *message.Registry) *Manager {
	return &Manager{registry: reg}
}

// BeginOutbound opens a transaction for a command this side is initiating,
// sending initiating immediately via send and registering it to match a
// future reply whose receiverSeq equals seq. deadline of zero means no
// timeout.
func (m *Manager) BeginOutbound(pattern message.TransactionPattern, seq uint8, initiating message.Record, send SendFunc, deadline time.Duration) (*Transaction, error) {
	t, err := beginOutbound(pattern, seq, initiating, send, deadline)
	if err != nil {
		return nil, err
	}
	m.add(t)
	return t, nil
}

// Offer presents an arrived packet to every pending transaction in
// insertion order. The first transaction whose correlation key matches
// (senderSeq for an Inbound transaction, receiverSeq for an Outbound one)
// and whose receive() reports handled wins; Offer then reaps it if it
// completed. If no pending transaction claims the packet, Offer starts a new
// inbound transaction for rec's command (looked up in the registry) and
// reports that via the bool return, so the caller can tell "an existing
// exchange advanced" from "a new one was opened".
func (m *Manager) Offer(senderSeq, receiverSeq uint8, rec message.Record, send SendFunc) (txn *Transaction, startedNew bool, err error) {
	m.mu.Lock()
	candidates := make([]*Transaction, len(m.pending))
	copy(candidates, m.pending)
	m.mu.Unlock()

	for _, t := range candidates {
		var seq uint8
		if t.Direction() == Inbound {
			seq = senderSeq
		} else {
			seq = receiverSeq
		}
		if seq != t.CorrelationSeq() {
			continue
		}
		if t.receive(rec) {
			m.reap()
			return t, false, nil
		}
	}

	pattern, ok := m.registry.PatternFor(rec.Command)
	if !ok {
		return nil, false, fmt.Errorf("transaction: no registered pattern for unsolicited command 0x%04X (%s)", uint16(rec.Command), rec.Name)
	}
	t, err := beginInbound(pattern, senderSeq, rec, send)
	if err != nil {
		return nil, false, err
	}
	m.add(t)
	m.reap()
	return t, true, nil
}

func (m *Manager) add(t *Transaction) {
	m.mu.Lock()
	m.pending = append(m.pending, t)
	m.mu.Unlock()
}

// Reap drops every transaction that has reached a terminal state, including
// ones that timed out independently of a new Offer call. Sessions should
// call this periodically (e.g. each listen-loop iteration) in addition to
// the automatic reap Offer performs on a match.
func (m *Manager) Reap() { m.reap() }

func (m *Manager) reap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.finished() {
			live = append(live, t)
		}
	}
	m.pending = live
}

// Pending returns the number of live transactions. Intended for tests and
// diagnostics.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// AbortAll aborts every pending transaction with err, used when a session
// shuts down and must not leave callers blocked on Wait/Done forever.
func (m *Manager) AbortAll(err error) {
	m.mu.Lock()
	pending := make([]*Transaction, len(m.pending))
	copy(pending, m.pending)
	m.pending = nil
	m.mu.Unlock()

	for _, t := range pending {
		t.complete(Result{Err: err})
	}
}
