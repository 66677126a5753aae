package framing

import "bytes"

// Reassembler buffers raw socket bytes and yields complete packets by
// accumulating into a bytes.Buffer and peeking at a frame boundary before
// consuming.
type Reassembler struct {
	buf    bytes.Buffer
	framer *Framer
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{framer: NewFramer()}
}

// Feed appends freshly read socket bytes to the internal buffer.
func (r *Reassembler) Feed(data []byte) {
	r.buf.Write(data)
}

// Next attempts to pull the next complete packet out of the buffered bytes.
// It returns ErrNeedMore when no full packet is currently buffered.
func (r *Reassembler) Next() (Packet, error) {
	pkt, consumed, err := r.framer.Read(r.buf.Bytes())
	if err != nil {
		return Packet{}, err
	}
	r.buf.Next(consumed)
	return pkt, nil
}

// CachedHeader exposes the header captured on the first successful packet,
// reused by the session when building outbound packets.
func (r *Reassembler) CachedHeader() []byte {
	return r.framer.CachedHeader()
}
