// Package transaction implements the ITv2 transaction engine (C5): the three
// request/response state machines (SimpleAck, CommandResponse, CommandRequest)
// that correlate a reply packet back to the exchange that started it.
//
// A Transaction never holds a reference back to its owning session: to
// avoid a cyclic session<->transaction reference, it instead holds a
// bounded SendFunc handle supplied at creation. The session owns its
// transactions, never the reverse.
package transaction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pcanto/dscbridge/internal/message"
)

// ErrUnexpectedResponse is the terminal error for a transaction that received
// a SimpleAck or CommandResponse while not expecting one.
var ErrUnexpectedResponse = errors.New("transaction: unexpected response")

// ErrTimeout is the terminal error for a transaction whose deadline elapsed
// before it correlated a reply.
var ErrTimeout = errors.New("transaction: timed out")

// ErrNack is the terminal error for a transaction that received a
// CommandError in place of the expected response.
var ErrNack = errors.New("transaction: command nacked")

// ErrOutboundOnly is returned by beginInbound (and so by Manager.Offer) for
// patterns the panel never initiates locally against us.
var ErrOutboundOnly = errors.New("transaction: pattern is outbound-only")

// ResultSuccess is the wire value of a CommandResponse/SimpleAck "result"
// field indicating the command succeeded.
const ResultSuccess uint8 = 0

// Direction records which side opened the transaction.
type Direction int

const (
	// Inbound transactions are opened by a packet arriving from the panel
	// with no matching pending transaction; the engine replies.
	Inbound Direction = iota
	// Outbound transactions are opened by this side sending a command and
	// awaiting the panel's reply.
	Outbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

type txnState int

const (
	stateActive txnState = iota
	stateComplete
	stateAborted
)

type awaitKind int

const (
	awaitNone awaitKind = iota
	awaitAck
	awaitResponse
	awaitRequestedCommand
)

// SendFunc transmits rec on the owning session's transport. Transactions
// never call back into session state beyond this handle.
type SendFunc func(rec message.Record) error

// Result is the outcome delivered to Wait once a transaction reaches a
// terminal state.
type Result struct {
	Record message.Record
	Err    error
}

// Transaction is one live SimpleAck/CommandResponse/CommandRequest exchange.
type Transaction struct {
	mu sync.Mutex

	pattern          message.TransactionPattern
	direction        Direction
	correlationSeq   uint8
	initiating       message.Record
	requestedCommand message.Command
	send             SendFunc

	awaiting awaitKind
	state    txnState
	result   Result
	done     chan struct{}
	timer    *time.Timer
}

// CorrelationSeq returns the fixed sequence value this transaction matches
// future packets against (remoteSeq for Inbound, localSeq for Outbound).
func (t *Transaction) CorrelationSeq() uint8 { return t.correlationSeq }

// Direction reports whether this transaction was opened by us or by the panel.
func (t *Transaction) Direction() Direction { return t.direction }

// Done returns a channel closed once the transaction reaches a terminal
// state.
func (t *Transaction) Done() <-chan struct{} { return t.done }

// Wait blocks until the transaction reaches a terminal state (completed,
// aborted, or timed out by its own deadline) and returns its result; it
// cannot be interrupted, so callers that need to give up early select on
// Done() instead. Wait is a convenience for tests and simple callers.
func (t *Transaction) Wait() Result {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func newTransaction(pattern message.TransactionPattern, direction Direction, seq uint8, send SendFunc) *Transaction {
	return &Transaction{
		pattern:        pattern,
		direction:      direction,
		correlationSeq: seq,
		send:           send,
		done:           make(chan struct{}),
	}
}

// beginOutbound sends initiating and arms the transaction to await whatever
// reply its pattern expects. deadline is zero for "no timeout".
func beginOutbound(pattern message.TransactionPattern, seq uint8, initiating message.Record, send SendFunc, deadline time.Duration) (*Transaction, error) {
	t := newTransaction(pattern, Outbound, seq, send)
	t.initiating = initiating

	if pattern == message.PatternCommandRequest {
		cmd, ok := initiating.Values["command"].(uint16)
		if !ok {
			return nil, fmt.Errorf("transaction: CommandRequest initiating record missing \"command\" value")
		}
		t.requestedCommand = message.Command(cmd)
	}

	if err := send(initiating); err != nil {
		return nil, fmt.Errorf("transaction: send initiating record: %w", err)
	}

	switch pattern {
	case message.PatternSimpleAck:
		t.awaiting = awaitAck
	case message.PatternCommandResponse:
		t.awaiting = awaitResponse
	case message.PatternCommandRequest:
		t.awaiting = awaitRequestedCommand
	default:
		return nil, fmt.Errorf("transaction: unknown pattern %d", pattern)
	}

	t.armDeadline(deadline)
	return t, nil
}

// beginInbound reacts to a freshly arrived packet for which no pending
// transaction matched. CommandRequest is outbound-only: the panel never
// opens one against us in this protocol's addressed direction, so it's
// rejected here.
func beginInbound(pattern message.TransactionPattern, seq uint8, rec message.Record, send SendFunc) (*Transaction, error) {
	if pattern == message.PatternCommandRequest {
		return nil, fmt.Errorf("%w: %s", ErrOutboundOnly, rec.Name)
	}

	t := newTransaction(pattern, Inbound, seq, send)
	t.initiating = rec

	switch pattern {
	case message.PatternSimpleAck:
		ack := message.Record{
			Command: message.CmdSimpleAck,
			Name:    "SimpleAck",
			Values:  map[string]any{"acked_command": uint16(rec.Command), "result": ResultSuccess},
		}
		if err := send(ack); err != nil {
			return nil, fmt.Errorf("transaction: send SimpleAck: %w", err)
		}
		t.complete(Result{Record: rec})
	case message.PatternCommandResponse:
		resp := message.Record{
			Command: message.CmdCommandResponse,
			Name:    "CommandResponse",
			Values:  map[string]any{"command": uint16(rec.Command), "result": ResultSuccess},
		}
		if err := send(resp); err != nil {
			return nil, fmt.Errorf("transaction: send CommandResponse: %w", err)
		}
		t.awaiting = awaitAck
	default:
		return nil, fmt.Errorf("transaction: unknown pattern %d", pattern)
	}
	return t, nil
}

func (t *Transaction) armDeadline(d time.Duration) {
	if d <= 0 {
		return
	}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.state != stateActive {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
		t.complete(Result{Err: fmt.Errorf("%w: %s", ErrTimeout, t.initiating.Name)})
	})
}

func (t *Transaction) complete(res Result) {
	t.mu.Lock()
	if t.state != stateActive {
		t.mu.Unlock()
		return
	}
	if res.Err != nil {
		t.state = stateAborted
	} else {
		t.state = stateComplete
	}
	t.awaiting = awaitNone
	t.result = res
	timer := t.timer
	t.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	close(t.done)
}

// finished reports whether the transaction has reached a terminal state.
func (t *Transaction) finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != stateActive
}

// receive offers rec to the transaction. It reports handled=true if rec
// belonged to this exchange (whether it advanced, completed, or aborted the
// transaction) and false if rec should be offered elsewhere.
func (t *Transaction) receive(rec message.Record) (handled bool) {
	t.mu.Lock()
	if t.state != stateActive {
		t.mu.Unlock()
		return false
	}
	awaiting := t.awaiting
	t.mu.Unlock()

	switch awaiting {
	case awaitAck:
		switch rec.Command {
		case message.CmdSimpleAck:
			t.complete(Result{Record: t.initiating})
			return true
		case message.CmdCommandError:
			t.complete(Result{Err: nackError(rec)})
			return true
		case message.CmdCommandResponse:
			t.complete(Result{Err: fmt.Errorf("%w: got CommandResponse while awaiting SimpleAck", ErrUnexpectedResponse)})
			return true
		}
		return false

	case awaitResponse:
		switch rec.Command {
		case message.CmdCommandResponse:
			var res Result
			code, _ := rec.Values["result"].(uint8)
			if code != ResultSuccess {
				res.Err = fmt.Errorf("%w: command 0x%04X result %d", ErrNack, uint16(t.initiating.Command), code)
			} else {
				res.Record = rec
			}
			ack := message.Record{
				Command: message.CmdSimpleAck,
				Name:    "SimpleAck",
				Values:  map[string]any{"acked_command": uint16(rec.Command), "result": ResultSuccess},
			}
			if err := t.send(ack); err != nil && res.Err == nil {
				res.Err = fmt.Errorf("transaction: send SimpleAck: %w", err)
			}
			t.complete(res)
			return true
		case message.CmdCommandError:
			t.complete(Result{Err: nackError(rec)})
			return true
		case message.CmdSimpleAck:
			t.complete(Result{Err: fmt.Errorf("%w: got SimpleAck while awaiting CommandResponse", ErrUnexpectedResponse)})
			return true
		}
		return false

	case awaitRequestedCommand:
		switch {
		case rec.Command == message.CmdCommandError:
			t.complete(Result{Err: nackError(rec)})
			return true
		case rec.Command == t.requestedCommand:
			t.complete(Result{Record: rec})
			return true
		case rec.Command == message.CmdSimpleAck || rec.Command == message.CmdCommandResponse:
			t.complete(Result{Err: fmt.Errorf("%w: got %s while awaiting 0x%04X", ErrUnexpectedResponse, rec.Name, uint16(t.requestedCommand))})
			return true
		}
		return false
	}
	return false
}

func nackError(rec message.Record) error {
	code, _ := rec.Values["nack_code"].(uint8)
	return fmt.Errorf("%w: code %d", ErrNack, code)
}
