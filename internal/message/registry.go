package message

import (
	"errors"
	"fmt"

	"github.com/pcanto/dscbridge/internal/codec"
)

// ErrDuplicateCommand is returned by Register (and wrapped at startup into a
// panic by MustRegisterAll) when two descriptors claim the same Command. A
// startup-time registry conflict is a programmer error, not a runtime one.
var ErrDuplicateCommand = errors.New("message: duplicate command registration")

// ErrUnknownCommand is returned by Encode when no descriptor is registered
// for the record's command. Decode never returns it: unknown commands fall
// back to DefaultMessage.
var ErrUnknownCommand = errors.New("message: unknown command")

// Descriptor binds a Command to its field layout, sequencing behavior, and
// transaction pattern.
type Descriptor struct {
	Command Command
	Name    string
	Fields  []codec.Field
	// AppSequence marks records whose MessagePacket envelope carries the
	// optional appSeq byte.
	AppSequence bool
	// Pattern selects the C5 state machine a new transaction initiated for
	// this command runs under. Descriptors that leave it unset get the zero
	// value, PatternSimpleAck; Manager.Offer uses it for every packet no
	// pending transaction claims, so an unsolicited SimpleAck, CommandResponse
	// or MultipleMessagePacket also opens an inbound SimpleAck transaction.
	Pattern TransactionPattern
	// Public marks a command as part of the documented integration surface
	// rather than a vendor-private/maintenance command.
	Public bool
}

// Registry is the command <-> record-type mapping (C4). It is built once at
// startup via Register/MustRegisterAll and is read-only thereafter, so it
// needs no locking.
type Registry struct {
	byCommand map[Command]Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byCommand: make(map[Command]Descriptor)}
}

// Register adds d to the registry. It returns ErrDuplicateCommand if d.Command
// is already registered.
func (r *Registry) Register(d Descriptor) error {
	if _, exists := r.byCommand[d.Command]; exists {
		return fmt.Errorf("%w: command 0x%04X (%s)", ErrDuplicateCommand, uint16(d.Command), d.Name)
	}
	r.byCommand[d.Command] = d
	return nil
}

// MustRegisterAll registers every descriptor in descs, panicking on the
// first duplicate. Intended for use at process startup from a fixed table
// (see DefaultDescriptors), where a duplicate is a build-time bug.
func (r *Registry) MustRegisterAll(descs []Descriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor registered for cmd, if any.
func (r *Registry) Lookup(cmd Command) (Descriptor, bool) {
	d, ok := r.byCommand[cmd]
	return d, ok
}

// Decode deserializes payload for cmd. Unknown commands decode to an opaque
// DefaultMessage record carrying the raw bytes; Decode never returns
// ErrUnknownCommand (only Encode does).
func (r *Registry) Decode(cmd Command, payload []byte) (Record, error) {
	d, ok := r.byCommand[cmd]
	if !ok {
		return DecodeDefault(cmd, payload), nil
	}
	values, err := codec.Decode(d.Fields, payload)
	if err != nil {
		return Record{}, fmt.Errorf("decode %s (0x%04X): %w", d.Name, uint16(cmd), err)
	}
	return Record{Command: cmd, Name: d.Name, Values: values}, nil
}

// Encode serializes rec.Values according to the registered descriptor for
// rec.Command. It returns ErrUnknownCommand if none is registered (a
// DefaultMessage record is encoded via EncodeDefault instead).
func (r *Registry) Encode(rec Record) ([]byte, error) {
	d, ok := r.byCommand[rec.Command]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownCommand, uint16(rec.Command))
	}
	return codec.Encode(d.Fields, rec.Values)
}

// IsAppSequence reports whether cmd's envelope carries the optional appSeq
// byte. Unregistered commands never do.
func (r *Registry) IsAppSequence(cmd Command) bool {
	d, ok := r.byCommand[cmd]
	return ok && d.AppSequence
}

// PatternFor returns the transaction pattern registered for cmd. Unknown
// commands report ok=false; the caller (Session's listen loop) must not
// start a new inbound transaction for a command with no registered pattern.
func (r *Registry) PatternFor(cmd Command) (pattern TransactionPattern, ok bool) {
	d, ok := r.byCommand[cmd]
	return d.Pattern, ok
}
