package panel

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pcanto/dscbridge/internal/transaction"
)

const (
	// DefaultHeartbeatInterval sends a ConnectionPoll this often to defeat
	// the panel's 2-minute idle timeout.
	DefaultHeartbeatInterval = 100 * time.Second
	// DefaultFlushQuiet is how long the inbound side must stay quiet after
	// Listen starts before the flush gate releases.
	DefaultFlushQuiet = 2 * time.Second
	// DefaultTxLockTimeout bounds how long SendMessage waits to acquire the
	// session's transaction lock.
	DefaultTxLockTimeout = 30 * time.Second
)

// Credentials configures the encryption types this session is willing to
// accept. At least one of the two pairs must be non-empty.
type Credentials struct {
	Type1AccessCode    string // 8 digits
	Type1IntegrationID string // 8 digits
	Type2AccessCode    string // 32 hex digits
}

// Option configures a Session at construction using the functional-options
// pattern.
type Option func(*sessionConfig)

type sessionConfig struct {
	heartbeatInterval      time.Duration
	flushQuiet             time.Duration
	txLockTimeout          time.Duration
	commandResponseTimeout time.Duration
	log                    *logrus.Entry
	onRecord               func(sessionID string, rec Record)
	onLifecycle            func(event LifecycleEvent)
	onRegister             func(s *Session) error
	onTransactionCompleted func(pattern string, outcome string)
}

func defaultSessionConfig() *sessionConfig {
	return &sessionConfig{
		heartbeatInterval:      DefaultHeartbeatInterval,
		flushQuiet:             DefaultFlushQuiet,
		txLockTimeout:          DefaultTxLockTimeout,
		commandResponseTimeout: transaction.DefaultCommandResponseTimeout,
		log:                    logrus.NewEntry(logrus.StandardLogger()),
	}
}

func applySessionConfig(opts []Option) *sessionConfig {
	cfg := defaultSessionConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithHeartbeatInterval overrides DefaultHeartbeatInterval. Zero disables
// the heartbeat task entirely.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d >= 0 {
			c.heartbeatInterval = d
		}
	}
}

// WithFlushQuiet overrides DefaultFlushQuiet.
func WithFlushQuiet(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.flushQuiet = d
		}
	}
}

// WithTxLockTimeout overrides DefaultTxLockTimeout.
func WithTxLockTimeout(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.txLockTimeout = d
		}
	}
}

// WithCommandResponseTimeout overrides the per-transaction deadline applied
// to outbound CommandResponse-pattern sends (e.g. PartitionArm).
func WithCommandResponseTimeout(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.commandResponseTimeout = d
		}
	}
}

// WithLogger sets the structured logger entry this session annotates with
// session_id/command/txn fields and logs handshake, lifecycle, and
// protocol-fatal events through.
func WithLogger(log *logrus.Entry) Option {
	return func(c *sessionConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRecordHandler sets the callback invoked for every record an
// inbound-initiated transaction completes with: the hook the notification
// dispatcher (C9) attaches to. Replies that complete SendMessage's own
// outbound transactions are returned to its caller and not passed here.
func WithRecordHandler(fn func(sessionID string, rec Record)) Option {
	return func(c *sessionConfig) {
		if fn != nil {
			c.onRecord = fn
		}
	}
}

// WithLifecycleHandler sets the callback invoked on session connect/disconnect,
// the hook the session registry (C7) attaches to emit SessionConnected/
// SessionDisconnected.
func WithLifecycleHandler(fn func(event LifecycleEvent)) Option {
	return func(c *sessionConfig) {
		if fn != nil {
			c.onLifecycle = fn
		}
	}
}

// WithTransactionResultHandler sets the callback invoked every time
// SendMessage's outbound transaction reaches a terminal state. outcome is
// one of "success", "timeout", "nack", "unexpected", "cancelled", "error" - the hook
// the telemetry layer attaches to count transaction outcomes.
func WithTransactionResultHandler(fn func(pattern string, outcome string)) Option {
	return func(c *sessionConfig) {
		if fn != nil {
			c.onTransactionCompleted = fn
		}
	}
}

// withRegisterHook sets a callback Accept runs once the handshake completes
// and the session's id is known, before the session is considered connected
// (before stateConnected and before SessionConnected fires). A non-nil error
// aborts Accept: the connection is closed and no lifecycle event of either
// kind is ever published for this session, so a rejected duplicate never
// deregisters or disconnects the incumbent holding the same id. Unexported:
// only Registry.Accept needs it, to register a session atomically with its
// connect transition instead of after the fact.
func withRegisterHook(fn func(s *Session) error) Option {
	return func(c *sessionConfig) {
		c.onRegister = fn
	}
}
