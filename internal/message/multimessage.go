package message

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedMultiMessage is returned when a MultipleMessagePacket's raw
// bytes don't decompose into whole <1-byte length><sub-message> entries.
var ErrMalformedMultiMessage = errors.New("message: malformed multi-message container")

// DecodeMultipleMessages unpacks a MultipleMessagePacket's raw_messages
// field into its constituent records, recursively decoding each sub-message
// (its own 2-byte command header followed by its own payload) through reg.
// Sub-messages never carry an app-sequence byte.
func DecodeMultipleMessages(reg *Registry, raw []byte) ([]Record, error) {
	var records []Record
	off := 0
	for off < len(raw) {
		length := int(raw[off])
		off++
		if length == 0 {
			// A genuine sub-message always carries at least its 2-byte command
			// header, so a zero-length entry can't be real: it's AES-ECB zero
			// padding applied to the container's raw bytes before the byte
			// count was known, not a valid entry. Treat it as the end of the
			// container rather than a malformed one.
			break
		}
		if off+length > len(raw) {
			return nil, fmt.Errorf("%w: sub-message length %d exceeds remaining %d bytes", ErrMalformedMultiMessage, length, len(raw)-off)
		}
		sub := raw[off : off+length]
		off += length

		if len(sub) < 2 {
			return nil, fmt.Errorf("%w: sub-message shorter than its command header", ErrMalformedMultiMessage)
		}
		cmd := Command(binary.BigEndian.Uint16(sub[:2]))
		rec, err := reg.Decode(cmd, sub[2:])
		if err != nil {
			return nil, fmt.Errorf("sub-message 0x%04X: %w", uint16(cmd), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeMultipleMessages is the inverse of DecodeMultipleMessages: it
// serializes each record via reg and frames it as <1-byte length><command
// u16><payload>, concatenating the results into a single
// MultipleMessagePacket raw_messages blob.
func EncodeMultipleMessages(reg *Registry, records []Record) ([]byte, error) {
	var out []byte
	for _, rec := range records {
		payload, err := reg.Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("sub-message 0x%04X: %w", uint16(rec.Command), err)
		}
		sub := make([]byte, 2+len(payload))
		binary.BigEndian.PutUint16(sub[:2], uint16(rec.Command))
		copy(sub[2:], payload)

		if len(sub) > 0xFF {
			return nil, fmt.Errorf("%w: sub-message 0x%04X too long (%d bytes)", ErrMalformedMultiMessage, uint16(rec.Command), len(sub))
		}
		out = append(out, byte(len(sub)))
		out = append(out, sub...)
	}
	return out, nil
}
