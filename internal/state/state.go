// Package state implements the panel-state store (C8): per-session
// partition/zone records with derived state (exit-delay remaining, effective
// arming status) and the typed change events the notification dispatcher
// (C9) and the UI facade subscribe to.
package state

import (
	"sync"
	"time"
)

// PartitionStatus enumerates a partition's arming state.
type PartitionStatus int

const (
	StatusUnknown PartitionStatus = iota
	StatusDisarmed
	StatusArmedAway
	StatusArmedHome
	StatusArmedNight
	StatusArming
	StatusPending
	StatusTriggered
)

// String renders the status the way the UI facade's JSON contract wants it:
// lowercase_snake_case.
func (s PartitionStatus) String() string {
	switch s {
	case StatusDisarmed:
		return "disarmed"
	case StatusArmedAway:
		return "armed_away"
	case StatusArmedHome:
		return "armed_home"
	case StatusArmedNight:
		return "armed_night"
	case StatusArming:
		return "arming"
	case StatusPending:
		return "pending"
	case StatusTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// ExitDelay records an in-progress arming grace period.
type ExitDelay struct {
	StartedAt       time.Time
	DurationSeconds uint16
	Audible         bool
	Urgent          bool
}

// Remaining returns the time left in the delay as of now, clamped to zero.
func (e *ExitDelay) Remaining(now time.Time) time.Duration {
	end := e.StartedAt.Add(time.Duration(e.DurationSeconds) * time.Second)
	if now.After(end) {
		return 0
	}
	return end.Sub(now)
}

// PartitionState is one partition's current record.
type PartitionState struct {
	Number      uint8
	Status      PartitionStatus
	IsReady     bool
	ExitDelay   *ExitDelay
	LastUpdated time.Time
}

// EffectiveStatus applies the "active exit delay with positive remaining
// time reports Arming regardless of stored status" override.
func (p PartitionState) EffectiveStatus(now time.Time) PartitionStatus {
	if p.ExitDelay != nil && p.ExitDelay.Remaining(now) > 0 {
		return StatusArming
	}
	return p.Status
}

// ZoneState is one zone's current record.
type ZoneState struct {
	Number      uint8
	Name        *string
	IsOpen      bool
	Partitions  []uint8
	LastUpdated time.Time
}

// sessionRecord holds one session's full panel-state snapshot plus the
// panel's broadcast clock.
type sessionRecord struct {
	partitions map[uint8]*PartitionState
	zones      map[uint8]*ZoneState

	panelDateTime time.Time
	syncedAt      time.Time
}

func newSessionRecord() *sessionRecord {
	return &sessionRecord{
		partitions: make(map[uint8]*PartitionState),
		zones:      make(map[uint8]*ZoneState),
	}
}

// EventKind discriminates the typed change events Store publishes.
type EventKind int

const (
	EventSessionStateChanged EventKind = iota
	EventPartitionStateChanged
	EventZoneStateChanged
)

// Event is delivered to every subscriber on any store mutation. Only the
// field matching Kind is populated.
type Event struct {
	Kind      EventKind
	SessionID string
	Partition PartitionState
	Zone      ZoneState
}

// Subscriber receives events on whatever goroutine the mutating call runs
// on (the owning Session's processing goroutine, typically); subscribers
// must not block or acquire locks the store itself might need.
type Subscriber func(Event)

// Store is the concurrent-safe per-session partition/zone store (C8). A
// single mutex guards all sessions; since the write path is entirely driven
// by one session's single-threaded notification dispatch (see
// internal/dispatch), lock hold times are short enough that splitting the
// lock per session buys nothing but complexity.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord

	subMu sync.Mutex
	subs  []Subscriber
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionRecord)}
}

// Subscribe registers fn to receive every future Event. Returns an
// unsubscribe function.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

// EnsureSession creates an empty record for sessionID if one doesn't
// already exist, and publishes EventSessionStateChanged either way so
// subscribers can treat "session came up" uniformly with other updates.
func (s *Store) EnsureSession(sessionID string) {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = newSessionRecord()
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionStateChanged, SessionID: sessionID})
}

// DropSession removes sessionID's state entirely, called when a Session
// shuts down.
func (s *Store) DropSession(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *Store) session(sessionID string) *sessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = newSessionRecord()
		s.sessions[sessionID] = rec
	}
	return rec
}

// Partition returns a copy of partitionNumber's state within sessionID, if
// known.
func (s *Store) Partition(sessionID string, partitionNumber uint8) (PartitionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return PartitionState{}, false
	}
	p, ok := rec.partitions[partitionNumber]
	if !ok {
		return PartitionState{}, false
	}
	return *p, true
}

// Partitions lists every known partition for sessionID in ascending
// partition-number order.
func (s *Store) Partitions(sessionID string) []PartitionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]PartitionState, 0, len(rec.partitions))
	for _, p := range rec.partitions {
		out = append(out, *p)
	}
	sortPartitions(out)
	return out
}

// Zone returns a copy of zoneNumber's state within sessionID, if known.
func (s *Store) Zone(sessionID string, zoneNumber uint8) (ZoneState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return ZoneState{}, false
	}
	z, ok := rec.zones[zoneNumber]
	if !ok {
		return ZoneState{}, false
	}
	return *z, true
}

// Zones lists every known zone for sessionID in ascending zone-number order.
func (s *Store) Zones(sessionID string) []ZoneState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]ZoneState, 0, len(rec.zones))
	for _, z := range rec.zones {
		out = append(out, *z)
	}
	sortZones(out)
	return out
}

// PanelDateTimeNow returns the panel's broadcast clock projected forward by
// the wall-clock time elapsed since the last broadcast was recorded.
func (s *Store) PanelDateTimeNow(sessionID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok || rec.syncedAt.IsZero() {
		return time.Time{}, false
	}
	return rec.panelDateTime.Add(time.Since(rec.syncedAt)), true
}

func (s *Store) mutatePartition(sessionID string, number uint8, mutate func(*PartitionState), now time.Time) {
	rec := s.session(sessionID)
	s.mu.Lock()
	p, ok := rec.partitions[number]
	if !ok {
		p = &PartitionState{Number: number}
		rec.partitions[number] = p
	}
	mutate(p)
	p.LastUpdated = now
	snapshot := *p
	s.mu.Unlock()
	s.publish(Event{Kind: EventPartitionStateChanged, SessionID: sessionID, Partition: snapshot})
}

func (s *Store) mutateZone(sessionID string, number uint8, defaultPartition uint8, mutate func(*ZoneState), now time.Time) {
	rec := s.session(sessionID)
	s.mu.Lock()
	z, ok := rec.zones[number]
	if !ok {
		z = &ZoneState{Number: number, Partitions: []uint8{defaultPartition}}
		rec.zones[number] = z
	}
	mutate(z)
	z.LastUpdated = now
	snapshot := *z
	s.mu.Unlock()
	s.publish(Event{Kind: EventZoneStateChanged, SessionID: sessionID, Zone: snapshot})
}

func sortPartitions(ps []PartitionState) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j-1].Number > ps[j].Number; j-- {
			ps[j-1], ps[j] = ps[j], ps[j-1]
		}
	}
}

func sortZones(zs []ZoneState) {
	for i := 1; i < len(zs); i++ {
		for j := i; j > 0 && zs[j-1].Number > zs[j].Number; j-- {
			zs[j-1], zs[j] = zs[j], zs[j-1]
		}
	}
}
