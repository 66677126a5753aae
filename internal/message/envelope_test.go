package message

import "testing"

func TestEnvelopeRoundTripNonAppSequenced(t *testing.T) {
	reg := newTestRegistry(t)
	rec := Record{Command: CmdConnectionPoll, Values: map[string]any{}}
	wire, err := reg.EncodeEnvelope(5, 9, 0, rec)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if len(wire) != 4 {
		t.Fatalf("len(wire) = %d, want 4 (no appSeq byte, no fields)", len(wire))
	}
	senderSeq, receiverSeq, appSeq, got, err := reg.DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if senderSeq != 5 || receiverSeq != 9 || appSeq != 0 {
		t.Fatalf("seqs = %d,%d,%d", senderSeq, receiverSeq, appSeq)
	}
	if got.Command != CmdConnectionPoll {
		t.Fatalf("Command = %v", got.Command)
	}
}

func TestEnvelopeRoundTripAppSequenced(t *testing.T) {
	reg := newTestRegistry(t)
	rec := Record{Command: CmdNotificationArmDisarm, Values: map[string]any{
		"partition_number": uint8(1),
		"arm_mode":         uint8(ArmModeStayArm),
	}}
	wire, err := reg.EncodeEnvelope(1, 0, 42, rec)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	_, _, appSeq, got, err := reg.DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if appSeq != 42 {
		t.Fatalf("appSeq = %d, want 42", appSeq)
	}
	if got.Values["arm_mode"] != uint8(ArmModeStayArm) {
		t.Fatalf("arm_mode = %v", got.Values["arm_mode"])
	}
}

func TestDecodeEnvelopeTooShort(t *testing.T) {
	reg := newTestRegistry(t)
	if _, _, _, _, err := reg.DecodeEnvelope([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short envelope")
	}
}
