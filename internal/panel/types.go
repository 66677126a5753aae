package panel

import "github.com/pcanto/dscbridge/internal/message"

// Record re-exports message.Record so callers configuring a Session don't
// need a second import for the hook signatures below.
type Record = message.Record

// LifecycleEventKind distinguishes a session coming up from going down.
type LifecycleEventKind int

const (
	// SessionConnected fires once the handshake completes and the session
	// is registered.
	SessionConnected LifecycleEventKind = iota
	// SessionDisconnected fires once Shutdown has torn the session down.
	SessionDisconnected
)

// LifecycleEvent is delivered to a Registry's subscribers (and onward to the
// UI facade) on session connect/disconnect.
type LifecycleEvent struct {
	Kind      LifecycleEventKind
	SessionID string
}
