package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestIntegerPrimitivesRoundTrip(t *testing.T) {
	fields := []Field{
		{Name: "a", Kind: KindU8},
		{Name: "b", Kind: KindI8},
		{Name: "c", Kind: KindU16},
		{Name: "d", Kind: KindI16},
		{Name: "e", Kind: KindU32},
		{Name: "f", Kind: KindI32},
	}
	values := Values{
		"a": uint8(0xAB),
		"b": int8(-5),
		"c": uint16(0xBEEF),
		"d": int16(-1000),
		"e": uint32(0xCAFEBABE),
		"f": int32(-70000),
	}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, k := range []string{"a", "b", "c", "d", "e", "f"} {
		if got[k] != values[k] {
			t.Fatalf("field %s = %v, want %v", k, got[k], values[k])
		}
	}
}

func TestBytesArrayKinds(t *testing.T) {
	fields := []Field{
		{Name: "fixed", Kind: KindBytesFixed, Length: 4},
		{Name: "prefixed", Kind: KindBytesPrefixed, PrefixBytes: 1},
		{Name: "rest", Kind: KindBytesUnbounded},
	}
	values := Values{
		"fixed":    []byte{1, 2, 3, 4},
		"prefixed": []byte{0xAA, 0xBB, 0xCC},
		"rest":     []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{1, 2, 3, 4, 3, 0xAA, 0xBB, 0xCC, 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = %x, want %x", wire, want)
	}

	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got["fixed"].([]byte), values["fixed"].([]byte)) {
		t.Fatalf("fixed = %x", got["fixed"])
	}
	if !bytes.Equal(got["prefixed"].([]byte), values["prefixed"].([]byte)) {
		t.Fatalf("prefixed = %x", got["prefixed"])
	}
	if !bytes.Equal(got["rest"].([]byte), values["rest"].([]byte)) {
		t.Fatalf("rest = %x", got["rest"])
	}
}

func TestUTF16StringRoundTrip(t *testing.T) {
	fields := []Field{{Name: "label", Kind: KindUTF16String, PrefixBytes: 1}}
	values := Values{"label": "Front Door"}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// "Front Door" is 10 runes, 2 bytes/char little-endian -> 20-byte body.
	if wire[0] != 20 {
		t.Fatalf("length prefix = %d, want 20", wire[0])
	}

	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["label"] != "Front Door" {
		t.Fatalf("label = %q", got["label"])
	}
}

func TestBCDStringKinds(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		fields := []Field{{Name: "code", Kind: KindBCDFixed, Length: 4}}
		wire, err := Encode(fields, Values{"code": "123456"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		want := []byte{0x12, 0x34, 0x56, 0x00}
		if !bytes.Equal(wire, want) {
			t.Fatalf("wire = %x, want %x", wire, want)
		}
		got, err := Decode(fields, wire)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got["code"] != "12345600" {
			t.Fatalf("code = %q", got["code"])
		}
	})

	t.Run("unbounded", func(t *testing.T) {
		fields := []Field{{Name: "digits", Kind: KindBCDUnbounded}}
		wire, err := Encode(fields, Values{"digits": "987"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		want := []byte{0x98, 0x70}
		if !bytes.Equal(wire, want) {
			t.Fatalf("wire = %x, want %x", wire, want)
		}
		got, err := Decode(fields, wire)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got["digits"] != "987" {
			t.Fatalf("digits = %q, want stripped trailing zero", got["digits"])
		}
	})

	t.Run("prefixed", func(t *testing.T) {
		fields := []Field{{Name: "pin", Kind: KindBCDPrefixed}}
		wire, err := Encode(fields, Values{"pin": "4321"})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		want := []byte{4, 0x43, 0x21}
		if !bytes.Equal(wire, want) {
			t.Fatalf("wire = %x, want %x", wire, want)
		}
		got, err := Decode(fields, wire)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got["pin"] != "4321" {
			t.Fatalf("pin = %q", got["pin"])
		}
	})
}

// TestDateTimeScenario3 verifies the packed DateTime format against the
// worked example 2024-03-15 14:30:45 (hour=14, min=30, sec=45, year=24,
// month=3, day=15), packed MSB-first as hour(5) minute(6) second(6)
// year(6) month(4) day(5) into a 32-bit big-endian word: 0x73D6B06F.
func TestDateTimeScenario3(t *testing.T) {
	fields := []Field{{Name: "when", Kind: KindDateTime}}
	when := time.Date(2024, time.March, 15, 14, 30, 45, 0, time.UTC)

	wire, err := Encode(fields, Values{"when": when})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x73, 0xD6, 0xB0, 0x6F}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = %x, want %x", wire, want)
	}

	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotTime := got["when"].(time.Time)
	if !gotTime.Equal(when) {
		t.Fatalf("decoded = %v, want %v", gotTime, when)
	}
}

// TestCompactIntScenario2 verifies the three worked examples for compact
// signed integers.
func TestCompactIntScenario2(t *testing.T) {
	cases := []struct {
		name  string
		value int32
		want  []byte
	}{
		{"negative-one", -1, []byte{0x01, 0xFF}},
		{"127", 127, []byte{0x01, 0x7F}},
		{"128", 128, []byte{0x02, 0x00, 0x80}},
	}
	fields := []Field{{Name: "v", Kind: KindCompactInt, Signed: true}}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire, err := Encode(fields, Values{"v": tc.value})
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(wire, tc.want) {
				t.Fatalf("wire = %x, want %x", wire, tc.want)
			}
			got, err := Decode(fields, wire)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got["v"].(int64) != int64(tc.value) {
				t.Fatalf("decoded = %v, want %v", got["v"], tc.value)
			}
		})
	}
}

func TestCompactIntUnsignedStripsToOneByte(t *testing.T) {
	fields := []Field{{Name: "v", Kind: KindCompactInt}}
	wire, err := Encode(fields, Values{"v": uint32(5)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x01, 0x05}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = %x, want %x", wire, want)
	}
}

func TestBitFieldGroupPacking(t *testing.T) {
	fields := []Field{
		{Name: "armed", Kind: KindBitField, Group: "flags", GroupSize: 1, Pos: 0, Width: 1},
		{Name: "ready", Kind: KindBitField, Group: "flags", GroupSize: 1, Pos: 1, Width: 1},
		{Name: "zoneType", Kind: KindBitField, Group: "flags", GroupSize: 1, Pos: 2, Width: 3},
	}
	values := Values{"armed": true, "ready": false, "zoneType": uint32(5)}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := byte(1) | byte(5)<<2
	if len(wire) != 1 || wire[0] != want {
		t.Fatalf("wire = %x, want [%02x]", wire, want)
	}

	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["armed"] != true || got["ready"] != false || got["zoneType"] != uint32(5) {
		t.Fatalf("decoded = %+v", got)
	}
}

func TestObjectArrayNested(t *testing.T) {
	zoneFields := []Field{
		{Name: "number", Kind: KindU8},
		{Name: "label", Kind: KindUTF16String, PrefixBytes: 1},
	}
	fields := []Field{
		{Name: "zones", Kind: KindObjectArray, PrefixBytes: 1, Fields: zoneFields},
	}
	values := Values{
		"zones": []Values{
			{"number": uint8(1), "label": "Front"},
			{"number": uint8(2), "label": "Back"},
		},
	}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	zones := got["zones"].([]Values)
	if len(zones) != 2 {
		t.Fatalf("len(zones) = %d, want 2", len(zones))
	}
	if zones[0]["label"] != "Front" || zones[1]["label"] != "Back" {
		t.Fatalf("zones = %+v", zones)
	}
}

func TestMultipleMessageContainerShape(t *testing.T) {
	// An object array of {command u8, payload bytes-prefixed} records, a
	// container shape built from the generic primitives. The real
	// MultipleMessagePacket is not encoded this way: message.
	// DecodeMultipleMessages walks <1-byte length><u16 command><payload>
	// entries held in an unbounded byte field.
	innerFields := []Field{
		{Name: "command", Kind: KindU8},
		{Name: "payload", Kind: KindBytesPrefixed, PrefixBytes: 2},
	}
	fields := []Field{
		{Name: "messages", Kind: KindObjectArray, PrefixBytes: 1, Fields: innerFields},
	}
	values := Values{
		"messages": []Values{
			{"command": uint8(0x10), "payload": []byte{0x01, 0x02}},
			{"command": uint8(0x11), "payload": []byte{}},
		},
	}

	wire, err := Encode(fields, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	msgs := got["messages"].([]Values)
	if len(msgs) != 2 || msgs[0]["command"] != uint8(0x10) {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestComputedFieldSkippedByCodec(t *testing.T) {
	fields := []Field{
		{Name: "raw", Kind: KindU8},
		{Name: "derived", Kind: KindComputed},
	}
	wire, err := Encode(fields, Values{"raw": uint8(9), "derived": "whatever"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(wire) != 1 {
		t.Fatalf("wire = %x, want 1 byte (computed field should not be written)", wire)
	}
	got, err := Decode(fields, wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, present := got["derived"]; present {
		t.Fatalf("derived field should not be populated by Decode")
	}
}

func TestDecodeShortReadErrors(t *testing.T) {
	fields := []Field{{Name: "v", Kind: KindU32}}
	_, err := Decode(fields, []byte{0x01, 0x02})
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("err = %v, want ErrShortRead", err)
	}
}
