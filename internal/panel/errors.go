package panel

import (
	"errors"

	"github.com/pcanto/dscbridge/internal/framing"
	"github.com/pcanto/dscbridge/internal/itvcrypto"
	"github.com/pcanto/dscbridge/internal/transaction"
)

// The session-fatal/transaction-local error kinds a Session classifies
// errors into. Sentinels, not an error-code enum, matching the rest of the
// module (see internal/message, internal/transaction).
var (
	// ErrCancelled marks an operation observing the session's cancel signal.
	ErrCancelled = errors.New("panel: cancelled")
	// ErrDisconnected marks a transport EOF or abrupt close. Fatal.
	ErrDisconnected = errors.New("panel: disconnected")
	// ErrLockTimeout marks a SendMessage call that couldn't acquire the
	// transaction lock within its timeout.
	ErrLockTimeout = errors.New("panel: transaction lock timeout")
	// ErrUnexpectedCommand marks a handshake packet that didn't carry the
	// command the handshake protocol demands at that step.
	ErrUnexpectedCommand = errors.New("panel: unexpected command during handshake")
	// ErrSessionNotFound is returned by Registry.Get for an unregistered id.
	ErrSessionNotFound = errors.New("panel: session not found")
	// ErrDuplicateSession is returned by Registry.Register for an id already
	// registered; the existing session wins, the new one is rejected.
	ErrDuplicateSession = errors.New("panel: duplicate session id")
)

// IsFatal reports whether err should close the session outright (a transport
// disconnect, a framing/encoding error, or a failed crypto check byte) as
// opposed to being local to one transaction (a timeout, an unexpected
// response, or a nacked command) or a clean cancellation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrDisconnected),
		errors.Is(err, itvcrypto.ErrCryptoCheck),
		errors.Is(err, ErrUnexpectedCommand),
		errors.Is(err, framing.ErrFraming),
		errors.Is(err, framing.ErrEncoding):
		return true
	default:
		return false
	}
}

// IsTransactionLocal reports whether err (typically a transaction.Result.Err)
// should only abort one transaction, leaving the session running.
func IsTransactionLocal(err error) bool {
	return errors.Is(err, transaction.ErrTimeout) ||
		errors.Is(err, transaction.ErrUnexpectedResponse) ||
		errors.Is(err, transaction.ErrNack)
}
