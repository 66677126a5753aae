// Package framing implements the ITv2 byte-stuffed packet framer (C1).
//
// Wire format: <stuffed-header> 0x7E <stuffed-payload> 0x7F. The stuffing
// rule escapes 0x7D, 0x7E and 0x7F inside both the header and payload
// regions; the unescaped 0x7E marks the header/payload boundary and the
// unescaped 0x7F marks packet end.
package framing

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	escByte  byte = 0x7D
	hdrEnd   byte = 0x7E
	pktEnd   byte = 0x7F
	escZero  byte = 0x00
	escHdr   byte = 0x01
	escPkt   byte = 0x02
)

var (
	// ErrFraming is returned when an unescaped 0x7E/0x7F appears inside a
	// stuffed region, where only the designated terminators may appear bare.
	ErrFraming = errors.New("framing: unescaped delimiter inside stuffed region")
	// ErrEncoding is returned for a 0x7D followed by a byte other than a
	// valid escape code. A 0x7D that is the last available byte yields
	// ErrNeedMore instead, and is not reported as ErrEncoding at end of stream.
	ErrEncoding = errors.New("framing: invalid escape sequence")
	// ErrNeedMore signals that the buffer does not yet hold a complete packet.
	ErrNeedMore = errors.New("framing: need more data")
)

// Packet is one reassembled ITv2 packet: the driver-opaque header and the
// application payload, both already unstuffed.
type Packet struct {
	Header  []byte
	Payload []byte
}

// Framer incrementally reassembles packets from a byte stream and caches the
// header seen on the first successful read for reuse on subsequent writes.
//
// Framer is not safe for concurrent use; callers serialize access (the
// session's transaction lock does this for the protocol engine).
type Framer struct {
	cachedHeader []byte
}

// NewFramer returns a Framer with no cached header.
func NewFramer() *Framer {
	return &Framer{}
}

// CachedHeader returns the header cached from the first successful Read, or
// nil if none has been read yet.
func (f *Framer) CachedHeader() []byte {
	return f.cachedHeader
}

// Read consumes the next complete packet from buf, returning the packet and
// the number of bytes consumed from buf. It returns ErrNeedMore if buf does
// not yet contain a full packet (the caller should read more bytes and
// retry with the same unconsumed prefix); it does not mutate buf.
func (f *Framer) Read(buf []byte) (pkt Packet, consumed int, err error) {
	hdrEndIdx, ok := findUnescapedDelimiter(buf, 0, hdrEnd, pktEnd)
	if !ok {
		return Packet{}, 0, ErrNeedMore
	}
	if buf[hdrEndIdx] != hdrEnd {
		return Packet{}, 0, fmt.Errorf("%w: payload terminator before header terminator", ErrFraming)
	}

	pktEndIdx, ok := findUnescapedDelimiter(buf, hdrEndIdx+1, pktEnd, hdrEnd)
	if !ok {
		return Packet{}, 0, ErrNeedMore
	}
	if buf[pktEndIdx] != pktEnd {
		return Packet{}, 0, fmt.Errorf("%w: unexpected header terminator inside payload", ErrFraming)
	}

	stuffedHeader := buf[:hdrEndIdx]
	stuffedPayload := buf[hdrEndIdx+1 : pktEndIdx]

	header, err := unstuff(stuffedHeader)
	if err != nil {
		return Packet{}, 0, err
	}
	payload, err := unstuff(stuffedPayload)
	if err != nil {
		return Packet{}, 0, err
	}

	if f.cachedHeader == nil {
		f.cachedHeader = header
	}

	return Packet{Header: header, Payload: payload}, pktEndIdx + 1, nil
}

// findUnescapedDelimiter scans buf from start looking for the first
// unescaped occurrence of either want or other, skipping escaped bytes.
// It returns the index and true if either terminator is found (the caller
// distinguishes which one via buf[idx]).
func findUnescapedDelimiter(buf []byte, start int, want, other byte) (int, bool) {
	for i := start; i < len(buf); i++ {
		switch buf[i] {
		case escByte:
			i++ // skip the escaped byte; validated during unstuff
			if i >= len(buf) {
				return 0, false
			}
		case want, other:
			return i, true
		}
	}
	return 0, false
}

// Write stuffs header and payload, joins them with the framing delimiters,
// and returns the complete on-wire packet.
func Write(header, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(header) + len(payload) + 2)
	stuffInto(&buf, header)
	buf.WriteByte(hdrEnd)
	stuffInto(&buf, payload)
	buf.WriteByte(pktEnd)
	return buf.Bytes()
}

func stuffInto(buf *bytes.Buffer, raw []byte) {
	for _, b := range raw {
		switch b {
		case escByte:
			buf.WriteByte(escByte)
			buf.WriteByte(escZero)
		case hdrEnd:
			buf.WriteByte(escByte)
			buf.WriteByte(escHdr)
		case pktEnd:
			buf.WriteByte(escByte)
			buf.WriteByte(escPkt)
		default:
			buf.WriteByte(b)
		}
	}
}

func unstuff(stuffed []byte) ([]byte, error) {
	out := make([]byte, 0, len(stuffed))
	for i := 0; i < len(stuffed); i++ {
		b := stuffed[i]
		if b != escByte {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(stuffed) {
			return nil, fmt.Errorf("%w: trailing escape byte", ErrEncoding)
		}
		switch stuffed[i] {
		case escZero:
			out = append(out, escByte)
		case escHdr:
			out = append(out, hdrEnd)
		case escPkt:
			out = append(out, pktEnd)
		default:
			return nil, fmt.Errorf("%w: escape followed by 0x%02X", ErrEncoding, stuffed[i])
		}
	}
	return out, nil
}
