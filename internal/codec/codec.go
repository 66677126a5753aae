// Package codec implements the ITv2 attribute-driven binary codec (C3): an
// ordered field-descriptor table is walked to serialize/deserialize typed
// message records, per the design note favoring a value-level descriptor
// list over reflection-based attributes.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Kind discriminates the wire-type of a field descriptor.
type Kind int

const (
	KindU8 Kind = iota
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindBytesFixed
	KindBytesPrefixed
	KindBytesUnbounded
	KindUTF16String
	KindBCDFixed
	KindBCDUnbounded
	KindBCDPrefixed
	KindDateTime
	KindCompactInt
	KindBitField
	KindObjectArray
	// KindComputed marks a derived/accessor-only field: never read or
	// written, present purely for documentation next to the wire fields.
	KindComputed
)

// Field describes one entry in a record's ordered field list.
type Field struct {
	Name string
	Kind Kind

	// Length is the fixed byte count for KindBytesFixed / KindBCDFixed
	// (BCD fixed packs 2 digits per byte, so digit count is 2*Length).
	Length int
	// PrefixBytes is 1 or 2 for KindBytesPrefixed / KindUTF16String, and the
	// array-count prefix width for KindObjectArray.
	PrefixBytes int
	// Signed marks a KindCompactInt field as two's complement. The
	// fixed-width integer kinds ignore it (KindI8/I16/I32 are always signed).
	Signed bool

	// Bit-field group members share Group; Pos is the bit offset (from the
	// LSB) within the packed integer, Width is the field's bit width
	// (Width==1 fields are bool-valued). GroupSize is the total pack size
	// in bytes (1, 2, or 4) and must agree across every field in a group.
	Group     string
	Pos       int
	Width     int
	GroupSize int

	// Fields is the nested record's own field list, for KindObjectArray.
	Fields []Field
}

var (
	// ErrShortRead is returned when the input doesn't contain enough bytes
	// for the declared field.
	ErrShortRead = errors.New("codec: short read")
	// ErrFieldValue is returned when a value in the record map has the
	// wrong Go type, or is out of range, for its declared Kind.
	ErrFieldValue = errors.New("codec: invalid field value")
	// ErrBadDescriptor is returned for an internally inconsistent field
	// table (e.g. mismatched bit-group sizes), a programmer error caught
	// at encode/decode time rather than at table-registration time.
	ErrBadDescriptor = errors.New("codec: invalid field descriptor")
)

// Values holds a record's field values keyed by Field.Name.
type Values map[string]any

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Encode serializes values according to fields, in declaration order, and
// returns the payload bytes. KindBytesUnbounded must be the last non-ignored
// field; neither this function nor message.Register checks that.
func Encode(fields []Field, values Values) ([]byte, error) {
	var buf bytes.Buffer
	i := 0
	for i < len(fields) {
		f := fields[i]
		if f.Kind == KindBitField {
			run, next := collectBitGroup(fields, i)
			if err := encodeBitGroup(&buf, run, values); err != nil {
				return nil, err
			}
			i = next
			continue
		}
		if err := encodeField(&buf, f, values); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		i++
	}
	return buf.Bytes(), nil
}

// Decode deserializes payload according to fields, in declaration order, and
// returns the populated Values map.
func Decode(fields []Field, payload []byte) (Values, error) {
	values := make(Values, len(fields))
	if _, err := decodeNestedRecord(fields, payload, values); err != nil {
		return nil, err
	}
	return values, nil
}

func collectBitGroup(fields []Field, start int) (run []Field, next int) {
	group := fields[start].Group
	j := start
	for j < len(fields) && fields[j].Kind == KindBitField && fields[j].Group == group {
		j++
	}
	return fields[start:j], j
}

func encodeField(buf *bytes.Buffer, f Field, values Values) error {
	switch f.Kind {
	case KindComputed:
		return nil
	case KindU8:
		v, err := asUint(values[f.Name], 8)
		if err != nil {
			return err
		}
		buf.WriteByte(byte(v))
	case KindI8:
		v, err := asInt(values[f.Name], 8)
		if err != nil {
			return err
		}
		buf.WriteByte(byte(int8(v)))
	case KindU16:
		v, err := asUint(values[f.Name], 16)
		if err != nil {
			return err
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case KindI16:
		v, err := asInt(values[f.Name], 16)
		if err != nil {
			return err
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(int16(v)))
		buf.Write(b[:])
	case KindU32:
		v, err := asUint(values[f.Name], 32)
		if err != nil {
			return err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	case KindI32:
		v, err := asInt(values[f.Name], 32)
		if err != nil {
			return err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(v)))
		buf.Write(b[:])
	case KindBytesFixed:
		return encodeBytesFixed(buf, f, values)
	case KindBytesPrefixed:
		return encodeBytesPrefixed(buf, f, values)
	case KindBytesUnbounded:
		raw, ok := values[f.Name].([]byte)
		if !ok {
			return fmt.Errorf("%w: want []byte", ErrFieldValue)
		}
		buf.Write(raw)
	case KindUTF16String:
		return encodeUTF16(buf, f, values)
	case KindBCDFixed:
		return encodeBCDFixed(buf, f, values)
	case KindBCDUnbounded:
		return encodeBCDUnbounded(buf, f, values)
	case KindBCDPrefixed:
		return encodeBCDPrefixed(buf, f, values)
	case KindDateTime:
		return encodeDateTime(buf, f, values)
	case KindCompactInt:
		return encodeCompactInt(buf, f, values)
	case KindObjectArray:
		return encodeObjectArray(buf, f, values)
	default:
		return fmt.Errorf("%w: unhandled kind %d", ErrBadDescriptor, f.Kind)
	}
	return nil
}

func decodeField(f Field, data []byte, values Values) (int, error) {
	switch f.Kind {
	case KindComputed:
		return 0, nil
	case KindU8:
		if len(data) < 1 {
			return 0, ErrShortRead
		}
		values[f.Name] = uint8(data[0])
		return 1, nil
	case KindI8:
		if len(data) < 1 {
			return 0, ErrShortRead
		}
		values[f.Name] = int8(data[0])
		return 1, nil
	case KindU16:
		if len(data) < 2 {
			return 0, ErrShortRead
		}
		values[f.Name] = binary.BigEndian.Uint16(data)
		return 2, nil
	case KindI16:
		if len(data) < 2 {
			return 0, ErrShortRead
		}
		values[f.Name] = int16(binary.BigEndian.Uint16(data))
		return 2, nil
	case KindU32:
		if len(data) < 4 {
			return 0, ErrShortRead
		}
		values[f.Name] = binary.BigEndian.Uint32(data)
		return 4, nil
	case KindI32:
		if len(data) < 4 {
			return 0, ErrShortRead
		}
		values[f.Name] = int32(binary.BigEndian.Uint32(data))
		return 4, nil
	case KindBytesFixed:
		if len(data) < f.Length {
			return 0, ErrShortRead
		}
		out := make([]byte, f.Length)
		copy(out, data[:f.Length])
		values[f.Name] = out
		return f.Length, nil
	case KindBytesPrefixed:
		return decodeBytesPrefixed(f, data, values)
	case KindBytesUnbounded:
		out := make([]byte, len(data))
		copy(out, data)
		values[f.Name] = out
		return len(data), nil
	case KindUTF16String:
		return decodeUTF16(f, data, values)
	case KindBCDFixed:
		return decodeBCDFixed(f, data, values)
	case KindBCDUnbounded:
		out := make([]byte, len(data))
		copy(out, data)
		values[f.Name] = stripTrailingZeroDigits(bcdDecode(out))
		return len(data), nil
	case KindBCDPrefixed:
		return decodeBCDPrefixed(f, data, values)
	case KindDateTime:
		return decodeDateTime(f, data, values)
	case KindCompactInt:
		return decodeCompactInt(f, data, values)
	case KindObjectArray:
		return decodeObjectArray(f, data, values)
	default:
		return 0, fmt.Errorf("%w: unhandled kind %d", ErrBadDescriptor, f.Kind)
	}
}

func asUint(v any, bits int) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value for unsigned field", ErrFieldValue)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: want unsigned integer, got %T", ErrFieldValue, v)
	}
}

func asInt(v any, bits int) (int64, error) {
	switch n := v.(type) {
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: want signed integer, got %T", ErrFieldValue, v)
	}
}

func encodeBytesFixed(buf *bytes.Buffer, f Field, values Values) error {
	raw, _ := values[f.Name].([]byte)
	out := make([]byte, f.Length)
	copy(out, raw) // truncate/zero-pad to exactly Length
	buf.Write(out)
	return nil
}

func encodeBytesPrefixed(buf *bytes.Buffer, f Field, values Values) error {
	raw, ok := values[f.Name].([]byte)
	if !ok {
		return fmt.Errorf("%w: want []byte", ErrFieldValue)
	}
	if err := writePrefixLen(buf, f.PrefixBytes, len(raw)); err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func decodeBytesPrefixed(f Field, data []byte, values Values) (int, error) {
	n, prefixLen, err := readPrefixLen(f.PrefixBytes, data)
	if err != nil {
		return 0, err
	}
	if len(data) < prefixLen+n {
		return 0, ErrShortRead
	}
	out := make([]byte, n)
	copy(out, data[prefixLen:prefixLen+n])
	values[f.Name] = out
	return prefixLen + n, nil
}

func writePrefixLen(buf *bytes.Buffer, prefixBytes, n int) error {
	switch prefixBytes {
	case 1:
		if n > 0xFF {
			return fmt.Errorf("%w: length %d exceeds 1-byte prefix", ErrFieldValue, n)
		}
		buf.WriteByte(byte(n))
	case 2:
		if n > 0xFFFF {
			return fmt.Errorf("%w: length %d exceeds 2-byte prefix", ErrFieldValue, n)
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	default:
		return fmt.Errorf("%w: prefix width must be 1 or 2, got %d", ErrBadDescriptor, prefixBytes)
	}
	return nil
}

func readPrefixLen(prefixBytes int, data []byte) (n, consumed int, err error) {
	switch prefixBytes {
	case 1:
		if len(data) < 1 {
			return 0, 0, ErrShortRead
		}
		return int(data[0]), 1, nil
	case 2:
		if len(data) < 2 {
			return 0, 0, ErrShortRead
		}
		return int(binary.BigEndian.Uint16(data)), 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: prefix width must be 1 or 2, got %d", ErrBadDescriptor, prefixBytes)
	}
}

func encodeUTF16(buf *bytes.Buffer, f Field, values Values) error {
	s, ok := values[f.Name].(string)
	if !ok {
		return fmt.Errorf("%w: want string", ErrFieldValue)
	}
	enc := utf16LE.NewEncoder()
	raw, err := enc.Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("utf16 encode: %w", err)
	}
	if err := writePrefixLen(buf, f.PrefixBytes, len(raw)); err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func decodeUTF16(f Field, data []byte, values Values) (int, error) {
	n, prefixLen, err := readPrefixLen(f.PrefixBytes, data)
	if err != nil {
		return 0, err
	}
	if len(data) < prefixLen+n {
		return 0, ErrShortRead
	}
	dec := utf16LE.NewDecoder()
	s, err := dec.Bytes(data[prefixLen : prefixLen+n])
	if err != nil {
		return 0, fmt.Errorf("utf16 decode: %w", err)
	}
	values[f.Name] = string(s)
	return prefixLen + n, nil
}

// bcdEncode packs two decimal digits per byte, high-nibble first, into
// ceil(len(digits)/2) bytes, right-padding an odd digit count with a
// trailing zero nibble.
func bcdEncode(digits string) []byte {
	n := (len(digits) + 1) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		hi := digitAt(digits, 2*i)
		lo := digitAt(digits, 2*i+1)
		out[i] = hi<<4 | lo
	}
	return out
}

func digitAt(s string, idx int) byte {
	if idx >= len(s) {
		return 0
	}
	c := s[idx]
	if c < '0' || c > '9' {
		return 0
	}
	return c - '0'
}

func bcdDecode(raw []byte) string {
	out := make([]byte, 0, 2*len(raw))
	for _, b := range raw {
		out = append(out, '0'+(b>>4), '0'+(b&0x0F))
	}
	return string(out)
}

func stripTrailingZeroDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	return s[:i]
}

func encodeBCDFixed(buf *bytes.Buffer, f Field, values Values) error {
	s, _ := values[f.Name].(string)
	digitCount := 2 * f.Length
	if len(s) > digitCount {
		return fmt.Errorf("%w: BCD value %q exceeds %d digits", ErrFieldValue, s, digitCount)
	}
	padded := s + zeros(digitCount-len(s))
	buf.Write(bcdEncode(padded))
	return nil
}

func zeros(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func decodeBCDFixed(f Field, data []byte, values Values) (int, error) {
	if len(data) < f.Length {
		return 0, ErrShortRead
	}
	values[f.Name] = bcdDecode(data[:f.Length])
	return f.Length, nil
}

// encodeBCDUnbounded writes the field's digit string as packed BCD with no
// length prefix, padding to an even digit count with a trailing zero nibble;
// it must be the last field in a record.
func encodeBCDUnbounded(buf *bytes.Buffer, f Field, values Values) error {
	s, ok := values[f.Name].(string)
	if !ok {
		return fmt.Errorf("%w: want string", ErrFieldValue)
	}
	buf.Write(bcdEncode(s))
	return nil
}

// encodeBCDPrefixed writes a 1-byte digit count followed by packed BCD.
func encodeBCDPrefixed(buf *bytes.Buffer, f Field, values Values) error {
	s, ok := values[f.Name].(string)
	if !ok {
		return fmt.Errorf("%w: want string", ErrFieldValue)
	}
	if len(s) > 0xFF {
		return fmt.Errorf("%w: BCD digit count %d exceeds 1-byte prefix", ErrFieldValue, len(s))
	}
	buf.WriteByte(byte(len(s)))
	buf.Write(bcdEncode(s))
	return nil
}

func decodeBCDPrefixed(f Field, data []byte, values Values) (int, error) {
	if len(data) < 1 {
		return 0, ErrShortRead
	}
	digitCount := int(data[0])
	byteCount := (digitCount + 1) / 2
	if len(data) < 1+byteCount {
		return 0, ErrShortRead
	}
	full := bcdDecode(data[1 : 1+byteCount])
	values[f.Name] = full[:digitCount]
	return 1 + byteCount, nil
}

// dateTimeEpochYear is the packed format's year origin (year stored as year-2000
// in 6 bits, so 2000..2063 is representable).
const dateTimeEpochYear = 2000

// encodeDateTime packs a time.Time into the 32-bit big-endian layout
// hour(5) minute(6) second(6) year-2000(6) month(4) day(5), MSB first.
func encodeDateTime(buf *bytes.Buffer, f Field, values Values) error {
	t, ok := values[f.Name].(time.Time)
	if !ok {
		return fmt.Errorf("%w: want time.Time", ErrFieldValue)
	}
	year := uint32(t.Year() - dateTimeEpochYear)
	if t.Year() < dateTimeEpochYear || year > 0x3F {
		return fmt.Errorf("%w: year %d outside packed DateTime range", ErrFieldValue, t.Year())
	}
	packed := uint32(t.Hour()&0x1F)<<27 |
		uint32(t.Minute()&0x3F)<<21 |
		uint32(t.Second()&0x3F)<<15 |
		(year&0x3F)<<9 |
		uint32(t.Month()&0x0F)<<5 |
		uint32(t.Day()&0x1F)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], packed)
	buf.Write(b[:])
	return nil
}

func decodeDateTime(f Field, data []byte, values Values) (int, error) {
	if len(data) < 4 {
		return 0, ErrShortRead
	}
	packed := binary.BigEndian.Uint32(data[:4])
	hour := int((packed >> 27) & 0x1F)
	minute := int((packed >> 21) & 0x3F)
	second := int((packed >> 15) & 0x3F)
	year := int((packed>>9)&0x3F) + dateTimeEpochYear
	month := int((packed >> 5) & 0x0F)
	day := int(packed & 0x1F)
	values[f.Name] = time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	return 4, nil
}

// encodeCompactInt writes a 1-byte length prefix followed by the minimal
// big-endian encoding of the value, sign-extended per f.Signed: an unsigned
// value strips leading 0x00 bytes down to at least one byte; a signed value
// strips only the leading bytes that are redundant for the two's-complement
// sign (e.g. i32(-1) -> 01 FF, i32(127) -> 01 7F, i32(128) -> 02 00 80; the
// leading 0x00 is kept there because dropping it would flip the represented
// sign).
func encodeCompactInt(buf *bytes.Buffer, f Field, values Values) error {
	raw, err := compactIntValue(values[f.Name])
	if err != nil {
		return err
	}
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], uint64(raw))

	trimmed := trimCompactBytes(full[:], f.Signed)
	if len(trimmed) > 0xFF {
		return fmt.Errorf("%w: compact int too wide", ErrFieldValue)
	}
	buf.WriteByte(byte(len(trimmed)))
	buf.Write(trimmed)
	return nil
}

func compactIntValue(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: want integer, got %T", ErrFieldValue, v)
	}
}

func trimCompactBytes(full []byte, signed bool) []byte {
	i := 0
	if !signed {
		for i < len(full)-1 && full[i] == 0x00 {
			i++
		}
		return full[i:]
	}
	negative := full[0]&0x80 != 0
	if !negative {
		for i < len(full)-1 && full[i] == 0x00 && full[i+1]&0x80 == 0 {
			i++
		}
	} else {
		for i < len(full)-1 && full[i] == 0xFF && full[i+1]&0x80 != 0 {
			i++
		}
	}
	return full[i:]
}

func decodeCompactInt(f Field, data []byte, values Values) (int, error) {
	if len(data) < 1 {
		return 0, ErrShortRead
	}
	n := int(data[0])
	if len(data) < 1+n {
		return 0, ErrShortRead
	}
	raw := data[1 : 1+n]

	var full [8]byte
	if n > 0 && f.Signed && raw[0]&0x80 != 0 {
		for i := range full {
			full[i] = 0xFF
		}
	}
	copy(full[8-n:], raw)
	u := binary.BigEndian.Uint64(full[:])

	if f.Signed {
		values[f.Name] = int64(u)
	} else {
		values[f.Name] = u
	}
	return 1 + n, nil
}

// encodeObjectArray writes a count prefix (PrefixBytes wide) followed by
// each element encoded with f.Fields in turn.
func encodeObjectArray(buf *bytes.Buffer, f Field, values Values) error {
	elems, ok := values[f.Name].([]Values)
	if !ok {
		return fmt.Errorf("%w: want []Values", ErrFieldValue)
	}
	if err := writePrefixLen(buf, f.PrefixBytes, len(elems)); err != nil {
		return err
	}
	for i, elem := range elems {
		encoded, err := Encode(f.Fields, elem)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		buf.Write(encoded)
	}
	return nil
}

func decodeObjectArray(f Field, data []byte, values Values) (int, error) {
	count, off, err := readPrefixLen(f.PrefixBytes, data)
	if err != nil {
		return 0, err
	}
	elems := make([]Values, 0, count)
	for i := 0; i < count; i++ {
		elemValues := make(Values, len(f.Fields))
		consumed, err := decodeNestedRecord(f.Fields, data[off:], elemValues)
		if err != nil {
			return 0, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, elemValues)
		off += consumed
	}
	values[f.Name] = elems
	return off, nil
}

// decodeNestedRecord walks fields against data the same way Decode does, but
// reports how many bytes it consumed instead of assuming the whole buffer
// belongs to one record (object-array elements are back-to-back, not
// individually length-prefixed).
func decodeNestedRecord(fields []Field, data []byte, values Values) (int, error) {
	off := 0
	i := 0
	for i < len(fields) {
		f := fields[i]
		if f.Kind == KindBitField {
			run, next := collectBitGroup(fields, i)
			n, err := decodeBitGroup(run, data[off:], values)
			if err != nil {
				return 0, err
			}
			off += n
			i = next
			continue
		}
		n, err := decodeField(f, data[off:], values)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", f.Name, err)
		}
		off += n
		i++
	}
	return off, nil
}

// encodeBitGroup packs every field in run into a single GroupSize-byte
// big-endian integer, each field's value shifted left by its Pos and masked
// to its Width, then writes that integer.
func encodeBitGroup(buf *bytes.Buffer, run []Field, values Values) error {
	if len(run) == 0 {
		return nil
	}
	groupSize := run[0].GroupSize
	var packed uint64
	for _, f := range run {
		if f.GroupSize != groupSize {
			return fmt.Errorf("%w: bit-group %q has inconsistent GroupSize", ErrBadDescriptor, f.Group)
		}
		mask := uint64(1)<<uint(f.Width) - 1
		var bits uint64
		if f.Width == 1 {
			b, ok := values[f.Name].(bool)
			if !ok {
				return fmt.Errorf("%w: bit field %q wants bool", ErrFieldValue, f.Name)
			}
			if b {
				bits = 1
			}
		} else {
			v, err := asUint(values[f.Name], f.Width)
			if err != nil {
				return fmt.Errorf("bit field %q: %w", f.Name, err)
			}
			bits = v & mask
		}
		packed |= (bits & mask) << uint(f.Pos)
	}

	var full [8]byte
	binary.BigEndian.PutUint64(full[:], packed)
	buf.Write(full[8-groupSize:])
	return nil
}

func decodeBitGroup(run []Field, data []byte, values Values) (int, error) {
	if len(run) == 0 {
		return 0, nil
	}
	groupSize := run[0].GroupSize
	if len(data) < groupSize {
		return 0, ErrShortRead
	}
	var full [8]byte
	copy(full[8-groupSize:], data[:groupSize])
	packed := binary.BigEndian.Uint64(full[:])

	for _, f := range run {
		if f.GroupSize != groupSize {
			return 0, fmt.Errorf("%w: bit-group %q has inconsistent GroupSize", ErrBadDescriptor, f.Group)
		}
		mask := uint64(1)<<uint(f.Width) - 1
		bits := (packed >> uint(f.Pos)) & mask
		if f.Width == 1 {
			values[f.Name] = bits == 1
		} else {
			values[f.Name] = uint32(bits)
		}
	}
	return groupSize, nil
}
