package state

import (
	"testing"
	"time"
)

func TestArmDisarmSetsStatus(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyArmDisarm("sess1", 1, ArmModeAwayArm, now)

	p, ok := s.Partition("sess1", 1)
	if !ok {
		t.Fatal("expected partition to exist")
	}
	if p.Status != StatusArmedAway {
		t.Fatalf("status = %v, want ArmedAway", p.Status)
	}
}

func TestDisarmClearsExitDelay(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyExitDelay("sess1", 1, ExitDelayFlags{Active: true, Audible: true}, 30, now)
	s.ApplyArmDisarm("sess1", 1, ArmModeDisarm, now.Add(5*time.Second))

	p, _ := s.Partition("sess1", 1)
	if p.Status != StatusDisarmed {
		t.Fatalf("status = %v, want Disarmed", p.Status)
	}
	if p.ExitDelay != nil {
		t.Fatalf("expected exit delay cleared, got %+v", p.ExitDelay)
	}
}

// TestExitDelayIdempotence checks that two identical active/duration
// notifications preserve the first StartedAt instead of restarting the
// countdown.
func TestExitDelayIdempotence(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	flags := ExitDelayFlags{Active: true, Audible: true}

	s.ApplyExitDelay("sess1", 1, flags, 60, t0)
	first, _ := s.Partition("sess1", 1)

	s.ApplyExitDelay("sess1", 1, flags, 60, t0.Add(10*time.Second))
	second, _ := s.Partition("sess1", 1)

	if !first.ExitDelay.StartedAt.Equal(second.ExitDelay.StartedAt) {
		t.Fatalf("StartedAt changed across identical notifications: %v -> %v",
			first.ExitDelay.StartedAt, second.ExitDelay.StartedAt)
	}
}

func TestExitDelayNewDurationResetsStartedAt(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyExitDelay("sess1", 1, ExitDelayFlags{Active: true}, 60, t0)
	s.ApplyExitDelay("sess1", 1, ExitDelayFlags{Active: true}, 30, t0.Add(5*time.Second))

	p, _ := s.Partition("sess1", 1)
	if !p.ExitDelay.StartedAt.Equal(t0.Add(5 * time.Second)) {
		t.Fatalf("StartedAt = %v, want reset to %v", p.ExitDelay.StartedAt, t0.Add(5*time.Second))
	}
}

// TestReadyOverride checks that a ready-status notification arriving mid
// exit-delay wins outright: status flips to Disarmed and the exit delay
// is cleared.
func TestReadyOverride(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyArmDisarm("sess1", 1, ArmModeAwayArm, t0)
	s.ApplyExitDelay("sess1", 1, ExitDelayFlags{Active: true, Audible: true}, 60, t0)

	s.ApplyPartitionReady("sess1", 1, ReadyStatusReadyToArm, t0.Add(1*time.Second))

	p, _ := s.Partition("sess1", 1)
	if p.Status != StatusDisarmed {
		t.Fatalf("status = %v, want Disarmed", p.Status)
	}
	if !p.IsReady {
		t.Fatal("expected IsReady true")
	}
	if p.ExitDelay != nil {
		t.Fatalf("expected exit delay cleared, got %+v", p.ExitDelay)
	}
}

func TestEffectiveStatusDuringExitDelay(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyArmDisarm("sess1", 1, ArmModeAwayArm, t0)
	s.ApplyExitDelay("sess1", 1, ExitDelayFlags{Active: true}, 60, t0)

	p, _ := s.Partition("sess1", 1)
	if got := p.EffectiveStatus(t0.Add(10 * time.Second)); got != StatusArming {
		t.Fatalf("EffectiveStatus = %v, want Arming", got)
	}
	if got := p.EffectiveStatus(t0.Add(120 * time.Second)); got != StatusArmedAway {
		t.Fatalf("EffectiveStatus after expiry = %v, want ArmedAway", got)
	}
}

func TestLifestyleZoneLazyCreateDefaultPartition(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyLifestyleZoneStatus("sess1", 65, LifestyleZoneOpen, now)

	z, ok := s.Zone("sess1", 65)
	if !ok {
		t.Fatal("expected zone to exist")
	}
	if !z.IsOpen {
		t.Fatal("expected zone open")
	}
	if len(z.Partitions) != 1 || z.Partitions[0] != 2 {
		t.Fatalf("default partitions = %v, want [2]", z.Partitions)
	}
}

func TestPanelDateTimeNowProjectsForward(t *testing.T) {
	s := NewStore()
	synced := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	panelTime := time.Date(2026, 1, 1, 11, 59, 0, 0, time.UTC)
	s.ApplyDateTimeBroadcast("sess1", panelTime, synced)

	before := time.Now()
	now, ok := s.PanelDateTimeNow("sess1")
	after := time.Now()
	if !ok {
		t.Fatal("expected known panel time")
	}
	// The projection adds the wall-clock time elapsed since synced, so the
	// result lies between the projections taken just before and just after.
	lo, hi := panelTime.Add(before.Sub(synced)), panelTime.Add(after.Sub(synced))
	if now.Before(lo) || now.After(hi) {
		t.Fatalf("PanelDateTimeNow = %v, want between %v and %v", now, lo, hi)
	}
}

func TestSubscriberReceivesEvents(t *testing.T) {
	s := NewStore()
	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	s.EnsureSession("sess1")
	s.ApplyArmDisarm("sess1", 1, ArmModeAwayArm, time.Now())

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Kind != EventSessionStateChanged {
		t.Fatalf("first event kind = %v, want EventSessionStateChanged", got[0].Kind)
	}
	if got[1].Kind != EventPartitionStateChanged {
		t.Fatalf("second event kind = %v, want EventPartitionStateChanged", got[1].Kind)
	}
}
