package message

import "github.com/pcanto/dscbridge/internal/codec"

// DefaultMessageName is Record.Name for an opaque, unrecognized command.
const DefaultMessageName = "DefaultMessage"

var defaultFields = []codec.Field{
	{Name: "raw_bytes", Kind: codec.KindBytesUnbounded},
}

// DecodeDefault wraps an unrecognized command's raw payload as an opaque
// DefaultMessage record, the fallback for a command not enumerated by the
// registry.
func DecodeDefault(cmd Command, payload []byte) Record {
	raw := make([]byte, len(payload))
	copy(raw, payload)
	return Record{
		Command: cmd,
		Name:    DefaultMessageName,
		Values:  codec.Values{"raw_bytes": raw},
	}
}

// EncodeDefault serializes a DefaultMessage record back to its raw bytes.
func EncodeDefault(rec Record) ([]byte, error) {
	return codec.Encode(defaultFields, rec.Values)
}
