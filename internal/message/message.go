// Package message implements the ITv2 message record catalogue and command
// registry (C4): the mapping from a wire Command code to the field layout
// that decodes its payload, and the enums carried inside those payloads.
package message

import "github.com/pcanto/dscbridge/internal/codec"

// Command is the 16-bit, big-endian-on-the-wire operation identifier.
type Command uint16

const (
	CmdOpenSession             Command = 0x0000
	CmdRequestAccess           Command = 0x0001
	CmdSimpleAck               Command = 0x0002
	CmdCommandResponse         Command = 0x0003
	CmdCommandRequest          Command = 0x0004
	CmdMultipleMessagePacket   Command = 0x0005
	CmdConnectionPoll          Command = 0x0006
	CmdCommandError            Command = 0x0007
	CmdPartitionArm            Command = 0x0210
	CmdPartitionDisarm         Command = 0x0211
	CmdZoneBypass              Command = 0x0220

	CmdNotificationArmDisarm          Command = 0x0310
	CmdNotificationPartitionReady     Command = 0x0311
	CmdNotificationExitDelay          Command = 0x0312
	CmdNotificationLifestyleZone      Command = 0x0320
	CmdNotificationDateTimeBroadcast  Command = 0x0330
)

// ArmMode enumerates the wire values carried by PartitionArm and
// NotificationArmDisarm.
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

// PartitionReadyStatus enumerates NotificationPartitionReadyStatus's status
// field.
type PartitionReadyStatus uint8

const (
	ReadyStatusNotReady PartitionReadyStatus = iota
	ReadyStatusReadyToArm
	ReadyStatusReadyToForceArm
)

// LifestyleZoneStatus enumerates NotificationLifestyleZoneStatus's status
// field.
type LifestyleZoneStatus uint8

const (
	LifestyleZoneClosed LifestyleZoneStatus = iota
	LifestyleZoneOpen
)

// Exit-delay flag bits within the DelayFlags bit field.
const (
	DelayFlagAudible         = 0x01
	DelayFlagRestarted       = 0x02
	DelayFlagUrgent          = 0x04
	DelayFlagExitDelayActive = 0x80
)

// Record is a decoded (or about-to-be-encoded) message: its command,
// human-readable name for logging, and field values.
type Record struct {
	Command Command
	Name    string
	Values  codec.Values
}

// TransactionPattern classifies which of the transaction engine's (C5)
// three state machines drives a command's request/response exchange.
type TransactionPattern int

const (
	// PatternSimpleAck is used for broadcasts/notifications: a bare ack in
	// reply, no typed response.
	PatternSimpleAck TransactionPattern = iota
	// PatternCommandResponse is used for arm/disarm and similar commands
	// requiring an explicit typed response before the ack.
	PatternCommandResponse
	// PatternCommandRequest is outbound-only: the initiator names a
	// requestedCommand and awaits any packet carrying that command.
	PatternCommandRequest
)

func (p TransactionPattern) String() string {
	switch p {
	case PatternSimpleAck:
		return "simple_ack"
	case PatternCommandResponse:
		return "command_response"
	case PatternCommandRequest:
		return "command_request"
	default:
		return "unknown"
	}
}
