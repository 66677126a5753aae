package message

import (
	"errors"
	"fmt"
)

// ErrShortEnvelope is returned when a packet payload is too short to contain
// even the sequence bytes and command code.
var ErrShortEnvelope = errors.New("message: envelope shorter than senderSeq/receiverSeq/command")

// Envelope is a decoded packet payload: the sequence pair every packet
// carries, plus the message record it wraps.
type Envelope struct {
	SenderSeq   uint8
	ReceiverSeq uint8
	Record      Record
}

// EncodeEnvelope serializes senderSeq, receiverSeq, and rec into the bytes a
// Session hands to the framer as a packet's payload: senderSeq, receiverSeq,
// command_high, command_low, [appSeq if rec's command is app-sequenced],
// then the codec-serialized record.
func (r *Registry) EncodeEnvelope(senderSeq, receiverSeq uint8, appSeq uint8, rec Record) ([]byte, error) {
	body, err := r.Encode(rec)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 4+len(body))
	out = append(out, senderSeq, receiverSeq, byte(rec.Command>>8), byte(rec.Command))
	if r.IsAppSequence(rec.Command) {
		out = append(out, appSeq)
	}
	out = append(out, body...)
	return out, nil
}

// DecodeEnvelope parses a packet's payload into its sequence pair and
// message record. appSeq is returned separately (0 if the command doesn't
// carry one) rather than folded into Record, since it's packet-envelope
// metadata, not part of the record's own field layout.
func (r *Registry) DecodeEnvelope(payload []byte) (senderSeq, receiverSeq uint8, appSeq uint8, rec Record, err error) {
	if len(payload) < 4 {
		return 0, 0, 0, Record{}, fmt.Errorf("%w: got %d bytes", ErrShortEnvelope, len(payload))
	}
	senderSeq, receiverSeq = payload[0], payload[1]
	cmd := Command(uint16(payload[2])<<8 | uint16(payload[3]))
	rest := payload[4:]

	if r.IsAppSequence(cmd) {
		if len(rest) < 1 {
			return 0, 0, 0, Record{}, fmt.Errorf("%w: missing appSeq byte for command 0x%04X", ErrShortEnvelope, uint16(cmd))
		}
		appSeq = rest[0]
		rest = rest[1:]
	}

	rec, err = r.Decode(cmd, rest)
	if err != nil {
		return 0, 0, 0, Record{}, err
	}
	return senderSeq, receiverSeq, appSeq, rec, nil
}
