package message

import "github.com/pcanto/dscbridge/internal/codec"

// DefaultDescriptors returns the built-in record catalogue. Records not
// named here still decode via the DefaultMessage fallback (see default.go);
// this table covers the handshake/ack/response envelopes and the
// notification types the panel-state store (C8) and the arm/disarm,
// bypass, and polling operations act on.
//
// Notification* commands carry AppSequence: true (application-level events
// are sequenced independently of the transport-level senderSeq/receiverSeq
// pair); the request/ack/response/poll envelopes that drive the transaction
// engine itself do not.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Command: CmdOpenSession,
			Name:    "OpenSession",
			Pattern: PatternSimpleAck,
			Public:  true,
			Fields: []codec.Field{
				{Name: "encryption_type", Kind: codec.KindU8},
				{Name: "rx_buffer_size", Kind: codec.KindU16},
			},
		},
		{
			Command: CmdRequestAccess,
			Name:    "RequestAccess",
			Pattern: PatternSimpleAck,
			Public:  true,
			Fields: []codec.Field{
				{Name: "initializer", Kind: codec.KindBytesUnbounded},
			},
		},
		{
			Command: CmdSimpleAck,
			Name:    "SimpleAck",
			Fields: []codec.Field{
				{Name: "acked_command", Kind: codec.KindU16},
				{Name: "result", Kind: codec.KindU8},
			},
		},
		{
			Command: CmdCommandResponse,
			Name:    "CommandResponse",
			Fields: []codec.Field{
				{Name: "command", Kind: codec.KindU16},
				{Name: "result", Kind: codec.KindU8},
			},
		},
		{
			Command: CmdCommandRequest,
			Name:    "CommandRequest",
			Pattern: PatternCommandRequest,
			Public:  true,
			Fields: []codec.Field{
				{Name: "command", Kind: codec.KindU16},
				{Name: "payload", Kind: codec.KindBytesUnbounded},
			},
		},
		{
			Command: CmdCommandError,
			Name:    "CommandError",
			Fields: []codec.Field{
				{Name: "command", Kind: codec.KindU16},
				{Name: "nack_code", Kind: codec.KindU8},
			},
		},
		{
			Command: CmdMultipleMessagePacket,
			Name:    "MultipleMessagePacket",
			Fields: []codec.Field{
				{Name: "raw_messages", Kind: codec.KindBytesUnbounded},
			},
		},
		{
			Command: CmdConnectionPoll,
			Name:    "ConnectionPoll",
			Pattern: PatternSimpleAck,
			Public:  true,
			Fields:  nil,
		},
		{
			Command: CmdPartitionArm,
			Name:    "PartitionArm",
			Pattern: PatternCommandResponse,
			Public:  true,
			Fields: []codec.Field{
				{Name: "partition_number", Kind: codec.KindU8},
				{Name: "arm_mode", Kind: codec.KindU8},
				{Name: "access_code", Kind: codec.KindBCDPrefixed},
			},
		},
		{
			Command: CmdPartitionDisarm,
			Name:    "PartitionDisarm",
			Pattern: PatternCommandResponse,
			Public:  true,
			Fields: []codec.Field{
				{Name: "partition_number", Kind: codec.KindU8},
				{Name: "access_code", Kind: codec.KindBCDPrefixed},
			},
		},
		{
			Command: CmdZoneBypass,
			Name:    "ZoneBypass",
			Pattern: PatternCommandResponse,
			Public:  true,
			Fields: []codec.Field{
				{Name: "zone_number", Kind: codec.KindU16},
				{Name: "bypassed", Kind: codec.KindU8},
			},
		},
		{
			Command:     CmdNotificationArmDisarm,
			Name:        "NotificationArmDisarm",
			AppSequence: true,
			Pattern:     PatternSimpleAck,
			Public:      true,
			Fields: []codec.Field{
				{Name: "partition_number", Kind: codec.KindU8},
				{Name: "arm_mode", Kind: codec.KindU8},
			},
		},
		{
			Command:     CmdNotificationPartitionReady,
			Name:        "NotificationPartitionReadyStatus",
			AppSequence: true,
			Pattern:     PatternSimpleAck,
			Public:      true,
			Fields: []codec.Field{
				{Name: "partition_number", Kind: codec.KindU8},
				{Name: "status", Kind: codec.KindU8},
			},
		},
		{
			Command:     CmdNotificationExitDelay,
			Name:        "NotificationExitDelay",
			AppSequence: true,
			Pattern:     PatternSimpleAck,
			Public:      true,
			Fields: []codec.Field{
				{Name: "partition_number", Kind: codec.KindU8},
				{Name: "duration_seconds", Kind: codec.KindU16},
				{Name: "audible", Kind: codec.KindBitField, Group: "delay_flags", GroupSize: 1, Pos: 0, Width: 1},
				{Name: "restarted", Kind: codec.KindBitField, Group: "delay_flags", GroupSize: 1, Pos: 1, Width: 1},
				{Name: "urgent", Kind: codec.KindBitField, Group: "delay_flags", GroupSize: 1, Pos: 2, Width: 1},
				{Name: "active", Kind: codec.KindBitField, Group: "delay_flags", GroupSize: 1, Pos: 7, Width: 1},
			},
		},
		{
			Command:     CmdNotificationLifestyleZone,
			Name:        "NotificationLifestyleZoneStatus",
			AppSequence: true,
			Pattern:     PatternSimpleAck,
			Public:      true,
			Fields: []codec.Field{
				{Name: "zone_number", Kind: codec.KindU16},
				{Name: "status", Kind: codec.KindU8},
			},
		},
		{
			Command:     CmdNotificationDateTimeBroadcast,
			Name:        "NotificationDateTimeBroadcast",
			AppSequence: true,
			Pattern:     PatternSimpleAck,
			Public:      true,
			Fields: []codec.Field{
				{Name: "panel_datetime", Kind: codec.KindDateTime},
			},
		},
	}
}
