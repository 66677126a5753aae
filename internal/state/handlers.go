package state

import "time"

// ArmMode mirrors message.ArmMode's wire values without importing the
// message package, so this store stays decodable from plain integers in
// tests and from internal/dispatch's translation layer alike.
type ArmMode uint8

const (
	ArmModeDisarm ArmMode = iota
	ArmModeAwayArm
	ArmModeAwayArmQuick
	ArmModeStayArm
	ArmModeStayArmQuick
	ArmModeNightArm
	ArmModeNightArmQuick
	ArmModeNoEntryDelay
)

// armModeStatus is the single source of truth for the ArmMode ->
// PartitionStatus mapping, kept as an explicit map rather than a switch
// cascade so it sits next to the invariant it encodes and stays reviewable
// as one unit.
var armModeStatus = map[ArmMode]PartitionStatus{
	ArmModeDisarm:        StatusDisarmed,
	ArmModeAwayArm:       StatusArmedAway,
	ArmModeAwayArmQuick:  StatusArmedAway,
	ArmModeStayArm:       StatusArmedHome,
	ArmModeStayArmQuick:  StatusArmedHome,
	ArmModeNightArm:      StatusArmedNight,
	ArmModeNightArmQuick: StatusArmedNight,
	ArmModeNoEntryDelay:  StatusArmedAway,
}

// StatusForArmMode resolves mode to the PartitionStatus a
// NotificationArmDisarm record drives a partition to. Unknown values (any
// ArmMode byte outside the declared range) fall back to ArmedAway.
func StatusForArmMode(mode ArmMode) PartitionStatus {
	if status, ok := armModeStatus[mode]; ok {
		return status
	}
	return StatusArmedAway
}

// ApplyArmDisarm handles a NotificationArmDisarm record: sets the
// partition's status per StatusForArmMode, and on Disarm also clears any
// in-progress exit delay.
func (s *Store) ApplyArmDisarm(sessionID string, partitionNumber uint8, mode ArmMode, now time.Time) {
	status := StatusForArmMode(mode)
	s.mutatePartition(sessionID, partitionNumber, func(p *PartitionState) {
		p.Status = status
		if mode == ArmModeDisarm {
			p.ExitDelay = nil
		}
	}, now)
}

// PartitionReadyStatus mirrors message.PartitionReadyStatus's wire values.
type PartitionReadyStatus uint8

const (
	ReadyStatusNotReady PartitionReadyStatus = iota
	ReadyStatusReadyToArm
	ReadyStatusReadyToForceArm
)

// ApplyPartitionReady handles a NotificationPartitionReadyStatus record.
// The panel only ever sends this while disarmed, so it unconditionally
// forces status=Disarmed and clears any exit delay regardless of the
// partition's prior recorded status.
func (s *Store) ApplyPartitionReady(sessionID string, partitionNumber uint8, status PartitionReadyStatus, now time.Time) {
	ready := status == ReadyStatusReadyToArm || status == ReadyStatusReadyToForceArm
	s.mutatePartition(sessionID, partitionNumber, func(p *PartitionState) {
		p.IsReady = ready
		p.Status = StatusDisarmed
		p.ExitDelay = nil
	}, now)
}

// ExitDelayFlags bundles the DelayFlags bit-field bits a
// NotificationExitDelay record carries.
type ExitDelayFlags struct {
	Active    bool
	Audible   bool
	Urgent    bool
	Restarted bool
}

// ApplyExitDelay handles a NotificationExitDelay record. When active and
// duration>0, it preserves the recorded StartedAt if an exit delay was
// already active with the identical duration, so a repeated notification
// for the same countdown doesn't restart the clock; any other change (new
// duration, or first activation) resets StartedAt to now. When not active,
// any existing exit delay is cleared.
func (s *Store) ApplyExitDelay(sessionID string, partitionNumber uint8, flags ExitDelayFlags, durationSeconds uint16, now time.Time) {
	s.mutatePartition(sessionID, partitionNumber, func(p *PartitionState) {
		if !flags.Active || durationSeconds == 0 {
			p.ExitDelay = nil
			return
		}
		startedAt := now
		if p.ExitDelay != nil && p.ExitDelay.DurationSeconds == durationSeconds {
			startedAt = p.ExitDelay.StartedAt
		}
		p.ExitDelay = &ExitDelay{
			StartedAt:       startedAt,
			DurationSeconds: durationSeconds,
			Audible:         flags.Audible,
			Urgent:          flags.Urgent,
		}
	}, now)
}

// LifestyleZoneStatus mirrors message.LifestyleZoneStatus's wire values.
type LifestyleZoneStatus uint8

const (
	LifestyleZoneClosed LifestyleZoneStatus = iota
	LifestyleZoneOpen
)

// defaultZonePartition computes the partition a newly-seen zone is
// associated with absent any other configuration:
// max(1, (zoneNumber-1)/64 + 1).
func defaultZonePartition(zoneNumber uint8) uint8 {
	p := (int(zoneNumber)-1)/64 + 1
	if p < 1 {
		p = 1
	}
	return uint8(p)
}

// ApplyLifestyleZoneStatus handles a NotificationLifestyleZoneStatus
// record, lazily creating the zone with its default partition association
// on first sight.
func (s *Store) ApplyLifestyleZoneStatus(sessionID string, zoneNumber uint8, status LifestyleZoneStatus, now time.Time) {
	s.mutateZone(sessionID, zoneNumber, defaultZonePartition(zoneNumber), func(z *ZoneState) {
		z.IsOpen = status == LifestyleZoneOpen
	}, now)
}

// ApplyDateTimeBroadcast handles a NotificationDateTimeBroadcast record,
// storing the panel's reported clock and the time it was recorded so
// PanelDateTimeNow can project it forward.
func (s *Store) ApplyDateTimeBroadcast(sessionID string, panelDateTime time.Time, now time.Time) {
	rec := s.session(sessionID)
	s.mu.Lock()
	rec.panelDateTime = panelDateTime
	rec.syncedAt = now
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionStateChanged, SessionID: sessionID})
}
