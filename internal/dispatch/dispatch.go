// Package dispatch implements the notification dispatcher (C9): it takes the
// records a panel.Session hands to its record callback and projects each one
// onto the panel-state store, the way message.Registry's AppSequence
// classification says a session's transaction layer already separates
// notifications from the request/response commands that drive transactions.
package dispatch

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pcanto/dscbridge/internal/message"
	"github.com/pcanto/dscbridge/internal/panel"
	"github.com/pcanto/dscbridge/internal/state"
)

// Dispatcher routes decoded records to a state.Store and logs anything it
// doesn't recognize rather than failing the session over it: an unmapped
// or malformed notification should never take down the TCP connection it
// arrived on.
type Dispatcher struct {
	registry *message.Registry
	store    *state.Store
	log      *logrus.Entry
}

// New returns a Dispatcher that decodes MultipleMessagePacket containers via
// reg and applies every record it recognizes to store.
func New(reg *message.Registry, store *state.Store, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{registry: reg, store: store, log: log}
}

// HandleLifecycle is wired as a panel.Registry lifecycle subscriber: it
// creates or drops the session's state-store record in step with the
// transport connection.
func (d *Dispatcher) HandleLifecycle(event panel.LifecycleEvent) {
	switch event.Kind {
	case panel.SessionConnected:
		d.store.EnsureSession(event.SessionID)
	case panel.SessionDisconnected:
		d.store.DropSession(event.SessionID)
	}
}

// HandleRecord is wired as a panel.Session's record callback (see
// panel.WithRecordHandler). A MultipleMessagePacket is unpacked and each
// sub-message dispatched in order; any other record is routed by command.
func (d *Dispatcher) HandleRecord(sessionID string, rec message.Record) {
	now := time.Now()
	if rec.Command == message.CmdMultipleMessagePacket {
		d.dispatchMultiMessage(sessionID, rec, now)
		return
	}
	d.apply(sessionID, rec, now)
}

func (d *Dispatcher) dispatchMultiMessage(sessionID string, rec message.Record, now time.Time) {
	raw, _ := rec.Values["raw_messages"].([]byte)
	subs, err := message.DecodeMultipleMessages(d.registry, raw)
	if err != nil {
		d.log.WithError(err).WithField("session_id", sessionID).Warn("dispatch: malformed multi-message container")
		return
	}
	for _, sub := range subs {
		d.apply(sessionID, sub, now)
	}
}

func (d *Dispatcher) apply(sessionID string, rec message.Record, now time.Time) {
	switch rec.Command {
	case message.CmdNotificationArmDisarm:
		partition, okP := rec.Values["partition_number"].(uint8)
		mode, okM := rec.Values["arm_mode"].(uint8)
		if !okP || !okM {
			d.logMalformed(sessionID, rec)
			return
		}
		d.store.ApplyArmDisarm(sessionID, partition, state.ArmMode(mode), now)

	case message.CmdNotificationPartitionReady:
		partition, okP := rec.Values["partition_number"].(uint8)
		status, okS := rec.Values["status"].(uint8)
		if !okP || !okS {
			d.logMalformed(sessionID, rec)
			return
		}
		d.store.ApplyPartitionReady(sessionID, partition, state.PartitionReadyStatus(status), now)

	case message.CmdNotificationExitDelay:
		partition, okP := rec.Values["partition_number"].(uint8)
		duration, okD := rec.Values["duration_seconds"].(uint16)
		if !okP || !okD {
			d.logMalformed(sessionID, rec)
			return
		}
		flags := state.ExitDelayFlags{
			Active:    boolValue(rec.Values["active"]),
			Audible:   boolValue(rec.Values["audible"]),
			Urgent:    boolValue(rec.Values["urgent"]),
			Restarted: boolValue(rec.Values["restarted"]),
		}
		d.store.ApplyExitDelay(sessionID, partition, flags, duration, now)

	case message.CmdNotificationLifestyleZone:
		zone, okZ := rec.Values["zone_number"].(uint16)
		status, okS := rec.Values["status"].(uint8)
		if !okZ || !okS {
			d.logMalformed(sessionID, rec)
			return
		}
		d.store.ApplyLifestyleZoneStatus(sessionID, uint8(zone), state.LifestyleZoneStatus(status), now)

	case message.CmdNotificationDateTimeBroadcast:
		panelTime, ok := rec.Values["panel_datetime"].(time.Time)
		if !ok {
			d.logMalformed(sessionID, rec)
			return
		}
		d.store.ApplyDateTimeBroadcast(sessionID, panelTime, now)

	default:
		// Envelope/transaction-driving commands (SimpleAck, CommandResponse,
		// RequestAccess, ...) and any record this dispatcher doesn't project
		// onto state pass through silently; the transaction engine already
		// consumed them before this hook ever runs.
	}
}

func (d *Dispatcher) logMalformed(sessionID string, rec message.Record) {
	d.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"command":    rec.Name,
	}).Warn("dispatch: record missing expected fields, dropped")
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}
