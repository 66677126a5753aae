package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pcanto/dscbridge/internal/framing"
	"github.com/pcanto/dscbridge/internal/itvcrypto"
	"github.com/pcanto/dscbridge/internal/message"
	"github.com/pcanto/dscbridge/internal/transaction"
)

// sessionLifecycleState tracks a Session through its three states.
type sessionLifecycleState int

const (
	stateUninitialized sessionLifecycleState = iota
	stateConnected
	stateClosed
)

// Session owns one panel TCP connection (C6): it drives the handshake,
// serializes outbound sends behind a single transaction lock, offers
// arriving packets to the transaction engine, and runs the flush-gate and
// heartbeat background tasks.
//
// A single mutex (txLock, implemented as a buffered channel so SendMessage
// can bound its wait) serializes every write to the wire and every
// correlation decision, matching the "session lock" design note: packet
// handling, transaction creation, and sequence-counter mutation must
// observe a consistent view of localSeq/remoteSeq/appSeq.
type Session struct {
	id   string
	conn net.Conn
	cfg  *sessionConfig

	registry    *message.Registry
	reassembler *framing.Reassembler
	encryptor   *itvcrypto.Handler
	txns        *transaction.Manager

	txLock chan struct{}

	seqMu     sync.Mutex
	localSeq  uint8
	remoteSeq uint8
	appSeq    uint8

	ctx    context.Context
	cancel context.CancelFunc

	flushOnce  sync.Once
	flushReady chan struct{}
	flushTimer *time.Timer
	flushMu    sync.Mutex

	stateMu sync.Mutex
	state   sessionLifecycleState

	closeOnce sync.Once
	done      chan struct{}
}

// ID returns the 12-digit integration identifier extracted from the first
// packet's header during the handshake.
func (s *Session) ID() string { return s.id }

// Accept performs the full handshake over conn and, on success, starts the
// session's listen loop, flush gate, and heartbeat in background goroutines.
// The handshake itself (steps described in the component design) is hand-
// rolled as a sequential read/send protocol rather than routed through the
// transaction engine: its strict ordering and one-shot nature fit a direct
// implementation better than a correlation state machine built for ongoing
// traffic.
func Accept(ctx context.Context, conn net.Conn, reg *message.Registry, creds Credentials, opts ...Option) (*Session, error) {
	cfg := applySessionConfig(opts)
	sctx, cancel := context.WithCancel(ctx)

	s := &Session{
		conn:        conn,
		cfg:         cfg,
		registry:    reg,
		reassembler: framing.NewReassembler(),
		txns:        transaction.NewManager(reg),
		txLock:      make(chan struct{}, 1),
		ctx:         sctx,
		cancel:      cancel,
		flushReady:  make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.txLock <- struct{}{}

	if err := s.handshake(creds); err != nil {
		cancel()
		conn.Close()
		return nil, err
	}

	if cfg.onRegister != nil {
		if err := cfg.onRegister(s); err != nil {
			cancel()
			conn.Close()
			return nil, err
		}
	}

	s.stateMu.Lock()
	s.state = stateConnected
	s.stateMu.Unlock()

	if cfg.onLifecycle != nil {
		cfg.onLifecycle(LifecycleEvent{Kind: SessionConnected, SessionID: s.id})
	}

	go s.listenLoop()
	s.armFlushTimer()
	if cfg.heartbeatInterval > 0 {
		go s.heartbeatLoop()
	}

	return s, nil
}

func (s *Session) handshake(creds Credentials) error {
	pkt1, err := s.readPacket()
	if err != nil {
		return fmt.Errorf("panel: handshake read OpenSession: %w", err)
	}
	s.id = string(pkt1.Header)

	senderSeq1, _, _, rec1, err := s.registry.DecodeEnvelope(pkt1.Payload)
	if err != nil {
		return fmt.Errorf("panel: handshake decode OpenSession: %w", err)
	}
	if rec1.Command != message.CmdOpenSession {
		return fmt.Errorf("%w: expected OpenSession, got %s", ErrUnexpectedCommand, rec1.Name)
	}
	s.remoteSeq = senderSeq1

	if err := s.sendWire(message.Record{
		Command: message.CmdSimpleAck,
		Name:    "SimpleAck",
		Values:  map[string]any{"acked_command": uint16(rec1.Command), "result": transaction.ResultSuccess},
	}); err != nil {
		return fmt.Errorf("panel: handshake ack OpenSession: %w", err)
	}

	peerEncType, _ := rec1.Values["encryption_type"].(uint8)
	encryptor, err := newEncryptionHandler(itvcrypto.EncryptionType(peerEncType), creds)
	if err != nil {
		return fmt.Errorf("panel: handshake encryption setup: %w", err)
	}
	s.encryptor = encryptor

	if err := s.sendWire(message.Record{
		Command: message.CmdOpenSession,
		Name:    "OpenSession",
		Values: map[string]any{
			"encryption_type": uint8(encryptor.Type()),
			"rx_buffer_size":  uint16(defaultRxBufferSize),
		},
	}); err != nil {
		return fmt.Errorf("panel: handshake send OpenSession echo: %w", err)
	}

	pkt2, err := s.readPacket()
	if err != nil {
		return fmt.Errorf("panel: handshake read RequestAccess: %w", err)
	}
	senderSeq2, _, _, rec2, err := s.registry.DecodeEnvelope(pkt2.Payload)
	if err != nil {
		return fmt.Errorf("panel: handshake decode RequestAccess: %w", err)
	}
	if rec2.Command != message.CmdRequestAccess {
		return fmt.Errorf("%w: expected RequestAccess, got %s", ErrUnexpectedCommand, rec2.Name)
	}
	s.remoteSeq = senderSeq2

	peerInitializer, _ := rec2.Values["initializer"].([]byte)
	if err := s.encryptor.ConfigureOutboundEncryption(peerInitializer); err != nil {
		return fmt.Errorf("panel: handshake configure outbound encryption: %w", err)
	}

	if err := s.sendWire(message.Record{
		Command: message.CmdSimpleAck,
		Name:    "SimpleAck",
		Values:  map[string]any{"acked_command": uint16(rec2.Command), "result": transaction.ResultSuccess},
	}); err != nil {
		return fmt.Errorf("panel: handshake ack RequestAccess: %w", err)
	}

	ourInitializer, err := s.encryptor.ConfigureInboundEncryption()
	if err != nil {
		return fmt.Errorf("panel: handshake configure inbound encryption: %w", err)
	}
	if err := s.sendWire(message.Record{
		Command: message.CmdRequestAccess,
		Name:    "RequestAccess",
		Values:  map[string]any{"initializer": ourInitializer},
	}); err != nil {
		return fmt.Errorf("panel: handshake send RequestAccess reply: %w", err)
	}

	return nil
}

const defaultRxBufferSize = 4096

func newEncryptionHandler(requested itvcrypto.EncryptionType, creds Credentials) (*itvcrypto.Handler, error) {
	switch requested {
	case itvcrypto.Type2:
		if creds.Type2AccessCode != "" {
			return itvcrypto.NewType2Handler(creds.Type2AccessCode)
		}
	case itvcrypto.Type1:
		if creds.Type1AccessCode != "" && creds.Type1IntegrationID != "" {
			return itvcrypto.NewType1Handler(creds.Type1AccessCode, creds.Type1IntegrationID)
		}
	}
	// Fall back to whichever credential set is actually configured, in
	// preference order Type2 then Type1, regardless of what the peer asked
	// for: a session with only one credential type configured can only ever
	// negotiate that one.
	if creds.Type2AccessCode != "" {
		return itvcrypto.NewType2Handler(creds.Type2AccessCode)
	}
	if creds.Type1AccessCode != "" && creds.Type1IntegrationID != "" {
		return itvcrypto.NewType1Handler(creds.Type1AccessCode, creds.Type1IntegrationID)
	}
	return nil, fmt.Errorf("panel: no encryption credentials configured for requested type %d", requested)
}

// readPacket blocks on the transport until the reassembler yields a
// complete packet, feeding it fresh bytes as needed.
func (s *Session) readPacket() (framing.Packet, error) {
	buf := make([]byte, 4096)
	for {
		pkt, err := s.reassembler.Next()
		if err == nil {
			return pkt, nil
		}
		if err != framing.ErrNeedMore {
			return framing.Packet{}, err
		}
		n, rerr := s.conn.Read(buf)
		if n > 0 {
			s.reassembler.Feed(buf[:n])
		}
		if rerr != nil {
			if rerr == io.EOF {
				return framing.Packet{}, ErrDisconnected
			}
			return framing.Packet{}, fmt.Errorf("%w: %v", ErrDisconnected, rerr)
		}
	}
}

// sendWire allocates the next outbound senderSeq (and appSeq, if rec's
// command carries one), encodes the envelope, encrypts it if the outbound
// direction is active, frames it, and writes it to the transport. Every
// physical outbound packet, fresh commands and automatic acks alike, goes
// through this one path, so localSeq always reflects what's actually on
// the wire.
func (s *Session) sendWire(rec message.Record) error {
	s.seqMu.Lock()
	s.localSeq++
	appSeq := uint8(0)
	if s.registry.IsAppSequence(rec.Command) {
		s.appSeq++
		appSeq = s.appSeq
	}
	senderSeq := s.localSeq
	receiverSeq := s.remoteSeq
	s.seqMu.Unlock()

	envelope, err := s.registry.EncodeEnvelope(senderSeq, receiverSeq, appSeq, rec)
	if err != nil {
		return fmt.Errorf("panel: encode %s: %w", rec.Name, err)
	}

	payload := envelope
	if s.encryptor != nil && s.encryptor.OutboundConfigured() {
		payload, err = s.encryptor.Encrypt(envelope)
		if err != nil {
			return fmt.Errorf("panel: encrypt %s: %w", rec.Name, err)
		}
	}

	framed := framing.Write(s.reassembler.CachedHeader(), payload)
	if _, err := s.conn.Write(framed); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// listenLoop reads packets for the lifetime of the connection, decrypting,
// decoding, and offering each to the transaction engine.
func (s *Session) listenLoop() {
	for {
		pkt, err := s.readPacket()
		if err != nil {
			s.fail(err)
			return
		}
		s.resetFlushTimer()

		payload := pkt.Payload
		if s.encryptor.InboundConfigured() {
			payload, err = s.encryptor.Decrypt(payload)
			if err != nil {
				s.fail(fmt.Errorf("%w: %v", framing.ErrEncoding, err))
				return
			}
		}

		senderSeq, receiverSeq, _, rec, err := s.registry.DecodeEnvelope(payload)
		if err != nil {
			s.fail(err)
			return
		}

		s.seqMu.Lock()
		s.remoteSeq = senderSeq
		s.seqMu.Unlock()

		if !s.acquireLock(0) {
			return
		}
		txn, startedNew, err := s.txns.Offer(senderSeq, receiverSeq, rec, s.sendWire)
		s.txns.Reap()
		s.releaseLock()
		if err != nil {
			s.cfg.log.WithError(err).WithField("session_id", s.id).Warn("panel: dropping unsolicited packet")
			continue
		}
		if startedNew {
			go s.notifyOnComplete(txn)
		}
	}
}

// notifyOnComplete waits for an inbound-initiated transaction to finish and
// reports its record through the configured record handler, the hook the
// notification dispatcher (C9) attaches to. Transactions matched against an
// already-pending outbound send are not routed here: SendMessage's own
// caller observes that result directly.
func (s *Session) notifyOnComplete(txn *transaction.Transaction) {
	res := txn.Wait()
	if res.Err == nil && s.cfg.onRecord != nil {
		s.cfg.onRecord(s.id, res.Record)
	}
}

// acquireLock acquires the transaction lock, waiting up to timeout (zero
// means wait forever, used by the listen loop which must not skip a
// packet). It reports false if the session's context was cancelled first.
func (s *Session) acquireLock(timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-s.txLock:
		return true
	case <-deadline:
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) releaseLock() {
	s.txLock <- struct{}{}
}

// armFlushTimer starts the debounced quiet timer: the flush gate releases
// once flushQuiet elapses with no further inbound traffic.
func (s *Session) armFlushTimer() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.cfg.flushQuiet <= 0 {
		s.releaseFlushGate()
		return
	}
	s.flushTimer = time.AfterFunc(s.cfg.flushQuiet, s.releaseFlushGate)
}

func (s *Session) resetFlushTimer() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.flushTimer != nil {
		s.flushTimer.Reset(s.cfg.flushQuiet)
	}
}

func (s *Session) releaseFlushGate() {
	s.flushOnce.Do(func() { close(s.flushReady) })
}

// heartbeatLoop sends a ConnectionPoll every heartbeatInterval to defeat the
// panel's idle timeout, stopping once the session's context is cancelled.
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.SendMessage(message.Record{
				Command: message.CmdConnectionPoll,
				Name:    "ConnectionPoll",
				Values:  map[string]any{},
			}); err != nil && IsFatal(err) {
				s.fail(err)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// SendMessage waits for the flush gate, acquires the transaction lock
// (bounded by the session's configured timeout), allocates and sends the
// outbound packet via the transaction engine for rec's registered pattern,
// releases the lock, and awaits the transaction's result.
func (s *Session) SendMessage(rec message.Record) (message.Record, error) {
	select {
	case <-s.flushReady:
	case <-s.ctx.Done():
		return message.Record{}, ErrCancelled
	}

	if !s.acquireLock(s.cfg.txLockTimeout) {
		select {
		case <-s.ctx.Done():
			return message.Record{}, ErrCancelled
		default:
			return message.Record{}, ErrLockTimeout
		}
	}

	pattern, ok := s.registry.PatternFor(rec.Command)
	if !ok {
		s.releaseLock()
		return message.Record{}, fmt.Errorf("panel: command %s has no registered transaction pattern", rec.Name)
	}

	s.seqMu.Lock()
	correlationSeq := s.localSeq + 1
	s.seqMu.Unlock()

	var deadline time.Duration
	if pattern == message.PatternCommandResponse {
		deadline = s.cfg.commandResponseTimeout
	}

	txn, err := s.txns.BeginOutbound(pattern, correlationSeq, rec, s.sendWire, deadline)
	s.releaseLock()
	if err != nil {
		return message.Record{}, err
	}

	select {
	case <-txn.Done():
		res := txn.Wait()
		if s.cfg.onTransactionCompleted != nil {
			s.cfg.onTransactionCompleted(pattern.String(), transactionOutcome(res.Err))
		}
		return res.Record, res.Err
	case <-s.ctx.Done():
		return message.Record{}, ErrCancelled
	}
}

// transactionOutcome classifies a completed outbound transaction's result
// for the telemetry layer.
func transactionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, transaction.ErrTimeout):
		return "timeout"
	case errors.Is(err, transaction.ErrNack):
		return "nack"
	case errors.Is(err, transaction.ErrUnexpectedResponse):
		return "unexpected"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}

// fail tears the session down in response to a protocol-fatal or transport
// error encountered outside a direct caller's control (the listen loop, the
// heartbeat loop).
func (s *Session) fail(err error) {
	s.cfg.log.WithError(err).WithField("session_id", s.id).Warn("panel: session failed")
	s.Shutdown(err)
}

// Shutdown cancels the session's context, aborts every pending transaction
// with cause, and closes the transport. Safe to call more than once and
// from multiple goroutines.
func (s *Session) Shutdown(cause error) {
	s.closeOnce.Do(func() {
		if cause == nil {
			cause = ErrCancelled
		}
		s.cancel()
		s.txns.AbortAll(cause)
		s.conn.Close()

		s.stateMu.Lock()
		s.state = stateClosed
		s.stateMu.Unlock()

		if s.cfg.onLifecycle != nil {
			s.cfg.onLifecycle(LifecycleEvent{Kind: SessionDisconnected, SessionID: s.id})
		}
		close(s.done)
	})
}

// Done returns a channel closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.done }
