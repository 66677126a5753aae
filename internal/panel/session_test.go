package panel

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pcanto/dscbridge/internal/framing"
	"github.com/pcanto/dscbridge/internal/itvcrypto"
	"github.com/pcanto/dscbridge/internal/message"
)

const testAccessCode32Hex = "00112233445566778899aabbccddeeff"

// fakePanel drives the client side of the ITv2 handshake and subsequent
// traffic over a net.Pipe, standing in for the physical alarm panel.
type fakePanel struct {
	t       *testing.T
	conn    net.Conn
	reg     *message.Registry
	framer  *framing.Framer
	handler *itvcrypto.Handler
	seq     uint8
	peerSeq uint8 // last senderSeq observed from the session, echoed back as our receiverSeq
	header  []byte
	pending []byte
}

func newFakePanel(t *testing.T, conn net.Conn) *fakePanel {
	t.Helper()
	reg := message.NewRegistry()
	reg.MustRegisterAll(message.DefaultDescriptors())
	h, err := itvcrypto.NewType2Handler(testAccessCode32Hex)
	if err != nil {
		t.Fatalf("NewType2Handler: %v", err)
	}
	return &fakePanel{
		t:      t,
		conn:   conn,
		reg:    reg,
		framer: framing.NewFramer(),
		handler: h,
		header: []byte("123456789012"),
	}
}

func (p *fakePanel) send(rec message.Record, encrypt bool) {
	p.t.Helper()
	p.seq++
	envelope, err := p.reg.EncodeEnvelope(p.seq, p.peerSeq, 0, rec)
	if err != nil {
		p.t.Fatalf("EncodeEnvelope: %v", err)
	}
	payload := envelope
	if encrypt {
		payload, err = p.handler.Encrypt(envelope)
		if err != nil {
			p.t.Fatalf("Encrypt: %v", err)
		}
	}
	if _, err := p.conn.Write(framing.Write(p.header, payload)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// recv blocks until a complete packet is available, decrypting and decoding
// it. decrypt must match whatever direction the session under test has
// configured by this point in the handshake.
func (p *fakePanel) recv(decrypt bool) message.Record {
	p.t.Helper()
	buf := make([]byte, 4096)
	for {
		pkt, consumed, err := p.framer.Read(p.pending)
		if err == nil {
			p.pending = p.pending[consumed:]
			payload := pkt.Payload
			if decrypt {
				payload, err = p.handler.Decrypt(payload)
				if err != nil {
					p.t.Fatalf("Decrypt: %v", err)
				}
			}
			senderSeq, _, _, rec, err := p.reg.DecodeEnvelope(payload)
			if err != nil {
				p.t.Fatalf("DecodeEnvelope: %v", err)
			}
			p.peerSeq = senderSeq
			return rec
		}
		if err != framing.ErrNeedMore {
			p.t.Fatalf("framer.Read: %v", err)
		}
		n, rerr := p.conn.Read(buf)
		if n > 0 {
			p.pending = append(p.pending, buf[:n]...)
		}
		if rerr != nil {
			p.t.Fatalf("conn.Read: %v", rerr)
		}
	}
}

// doHandshake runs the Type 2 handshake client side: OpenSession ->
// SimpleAck -> OpenSession echo -> RequestAccess -> SimpleAck ->
// RequestAccess echo, and configures p.handler's both directions to match
// the session under test.
func (p *fakePanel) doHandshake() {
	p.t.Helper()
	p.send(message.Record{
		Command: message.CmdOpenSession,
		Name:    "OpenSession",
		Values: map[string]any{
			"encryption_type": uint8(itvcrypto.Type2),
			"rx_buffer_size":  uint16(4096),
		},
	}, false)

	if ack := p.recv(false); ack.Command != message.CmdSimpleAck {
		p.t.Fatalf("expected SimpleAck for OpenSession, got %v", ack.Command)
	}
	if echo := p.recv(false); echo.Command != message.CmdOpenSession {
		p.t.Fatalf("expected OpenSession echo, got %v", echo.Command)
	}

	localInit, err := p.handler.ConfigureInboundEncryption()
	if err != nil {
		p.t.Fatalf("ConfigureInboundEncryption: %v", err)
	}
	p.send(message.Record{
		Command: message.CmdRequestAccess,
		Name:    "RequestAccess",
		Values:  map[string]any{"initializer": localInit},
	}, false)

	// The session enables its outbound direction from our initializer before
	// acking, so the ack and its RequestAccess reply arrive encrypted.
	if ack := p.recv(true); ack.Command != message.CmdSimpleAck {
		p.t.Fatalf("expected SimpleAck for RequestAccess, got %v", ack.Command)
	}
	echo := p.recv(true)
	if echo.Command != message.CmdRequestAccess {
		p.t.Fatalf("expected RequestAccess echo, got %v", echo.Command)
	}
	peerInit, _ := echo.Values["initializer"].([]byte)
	if err := p.handler.ConfigureOutboundEncryption(peerInit); err != nil {
		p.t.Fatalf("ConfigureOutboundEncryption: %v", err)
	}
}

func newConnectedSession(t *testing.T, opts ...Option) (*Session, *fakePanel) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	panelSide := newFakePanel(t, clientConn)

	reg := message.NewRegistry()
	reg.MustRegisterAll(message.DefaultDescriptors())
	creds := Credentials{Type2AccessCode: testAccessCode32Hex}

	type result struct {
		sess *Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := Accept(context.Background(), serverConn, reg, creds, opts...)
		done <- result{s, err}
	}()

	panelSide.doHandshake()

	res := <-done
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}
	t.Cleanup(func() { res.sess.Shutdown(nil) })
	return res.sess, panelSide
}

func TestAcceptCompletesType2Handshake(t *testing.T) {
	sess, _ := newConnectedSession(t, WithHeartbeatInterval(0))
	if sess.ID() != "123456789012" {
		t.Fatalf("ID() = %q, want the OpenSession header", sess.ID())
	}
}

func TestListenLoopDispatchesNotificationToRecordHandler(t *testing.T) {
	records := make(chan message.Record, 1)
	sess, panelSide := newConnectedSession(t,
		WithHeartbeatInterval(0),
		WithRecordHandler(func(sessionID string, rec message.Record) {
			records <- rec
		}),
	)
	_ = sess

	panelSide.send(message.Record{
		Command: message.CmdNotificationArmDisarm,
		Name:    "NotificationArmDisarm",
		Values: map[string]any{
			"partition_number": uint8(1),
			"arm_mode":         uint8(message.ArmModeAwayArm),
		},
	}, true)

	// The session auto-acks a notification before its record callback fires
	// (net.Pipe's synchronous Write needs this side reading first, or the
	// session's ack send blocks forever waiting for a reader).
	ack := panelSide.recv(true)
	if ack.Command != message.CmdSimpleAck {
		t.Fatalf("expected auto-ack SimpleAck, got %v", ack.Command)
	}

	select {
	case rec := <-records:
		if rec.Command != message.CmdNotificationArmDisarm {
			t.Fatalf("Command = %v", rec.Command)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched record")
	}
}

func TestSendMessageCommandResponseRoundTrip(t *testing.T) {
	sess, panelSide := newConnectedSession(t, WithHeartbeatInterval(0), WithFlushQuiet(10*time.Millisecond))

	resultCh := make(chan struct {
		rec message.Record
		err error
	}, 1)
	go func() {
		rec, err := sess.SendMessage(message.Record{
			Command: message.CmdPartitionArm,
			Name:    "PartitionArm",
			Values: map[string]any{
				"partition_number": uint8(1),
				"arm_mode":         uint8(message.ArmModeAwayArm),
				"access_code":      "1234",
			},
		})
		resultCh <- struct {
			rec message.Record
			err error
		}{rec, err}
	}()

	armReq := panelSide.recv(true)
	if armReq.Command != message.CmdPartitionArm {
		t.Fatalf("expected PartitionArm on the wire, got %v", armReq.Command)
	}

	panelSide.send(message.Record{
		Command: message.CmdCommandResponse,
		Name:    "CommandResponse",
		Values: map[string]any{
			"command": uint16(message.CmdPartitionArm),
			"result":  uint8(0),
		},
	}, true)

	if ack := panelSide.recv(true); ack.Command != message.CmdSimpleAck {
		t.Fatalf("expected session to ack our CommandResponse, got %v", ack.Command)
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("SendMessage err = %v", res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SendMessage to complete")
	}
}

func TestSendMessageWaitsForFlushGate(t *testing.T) {
	sess, _ := newConnectedSession(t, WithHeartbeatInterval(0), WithFlushQuiet(50*time.Millisecond))

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, err := sess.SendMessage(message.Record{
			Command: message.CmdConnectionPoll,
			Name:    "ConnectionPoll",
			Values:  map[string]any{},
		})
		done <- err
	}()

	select {
	case <-done:
		if time.Since(start) < 40*time.Millisecond {
			t.Fatal("SendMessage returned before the flush gate should have released")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage never unblocked; flush gate may be stuck closed")
	}
}

func TestShutdownAbortsPendingSendMessage(t *testing.T) {
	sess, _ := newConnectedSession(t, WithHeartbeatInterval(0), WithFlushQuiet(time.Hour))

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.SendMessage(message.Record{
			Command: message.CmdConnectionPoll,
			Name:    "ConnectionPoll",
			Values:  map[string]any{},
		})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	sess.Shutdown(nil)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected SendMessage to fail once the session shut down")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage never unblocked after Shutdown")
	}
}
