package wire

import (
	"testing"
	"time"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	msg := Message{
		Address:        0x1f02e6a1,
		SequenceNumber: 3,
		MoreFragments:  false,
		Blocks: []Block{
			&GetStatusBlock{Subtype: PodInfoDetailedStatus},
		},
	}
	encoded, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded.Address != msg.Address {
		t.Errorf("Address = 0x%x, want 0x%x", decoded.Address, msg.Address)
	}
	if decoded.SequenceNumber != msg.SequenceNumber {
		t.Errorf("SequenceNumber = %d, want %d", decoded.SequenceNumber, msg.SequenceNumber)
	}
	if len(decoded.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(decoded.Blocks))
	}
	got, ok := decoded.Blocks[0].(*GetStatusBlock)
	if !ok {
		t.Fatalf("block type = %T, want *GetStatusBlock", decoded.Blocks[0])
	}
	if got.Subtype != PodInfoDetailedStatus {
		t.Errorf("Subtype = %v, want %v", got.Subtype, PodInfoDetailedStatus)
	}
}

func TestDecodeMessageRejectsBadCRC(t *testing.T) {
	msg := Message{Address: 1, Blocks: []Block{&AckBlock{}}}
	encoded, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xff
	if _, err := DecodeMessage(encoded); err == nil {
		t.Fatal("expected crc mismatch error, got nil")
	}
}

func TestBolusExtraBlockRoundTrip(t *testing.T) {
	b := &BolusExtraBlock{
		NonceValue:       0xdeadbeef,
		Units:            2.45,
		Beep:             BipBip,
		ReminderInterval: 5 * time.Minute,
	}
	encoded, err := EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	decoded, n, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("consumed %d bytes, want %d", n, len(encoded))
	}
	got, ok := decoded.(*BolusExtraBlock)
	if !ok {
		t.Fatalf("decoded type = %T, want *BolusExtraBlock", decoded)
	}
	if got.NonceValue != b.NonceValue {
		t.Errorf("NonceValue = 0x%x, want 0x%x", got.NonceValue, b.NonceValue)
	}
	if got.Units != b.Units {
		t.Errorf("Units = %v, want %v", got.Units, b.Units)
	}
	if got.Beep != b.Beep {
		t.Errorf("Beep = %v, want %v", got.Beep, b.Beep)
	}
	if got.ReminderInterval != b.ReminderInterval {
		t.Errorf("ReminderInterval = %v, want %v", got.ReminderInterval, b.ReminderInterval)
	}
}

func TestBasalScheduleExtraBlockRoundTrip(t *testing.T) {
	var sched BasalSchedule
	for i := range sched.SegmentsPerHour {
		sched.SegmentsPerHour[i] = 0.05 * float64(i%20)
	}
	b := &BasalScheduleExtraBlock{
		NonceValue: 7,
		Schedule:   sched,
		UTCOffset:  -5 * time.Hour,
		Beep:       NoBeep,
	}
	encoded, err := EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	decoded, _, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	got := decoded.(*BasalScheduleExtraBlock)
	if got.UTCOffset != b.UTCOffset {
		t.Errorf("UTCOffset = %v, want %v", got.UTCOffset, b.UTCOffset)
	}
	for i := range sched.SegmentsPerHour {
		if diff := got.Schedule.SegmentsPerHour[i] - sched.SegmentsPerHour[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("segment %d = %v, want %v", i, got.Schedule.SegmentsPerHour[i], sched.SegmentsPerHour[i])
		}
	}
}

func TestErrorResponseBlockRoundTripBothKinds(t *testing.T) {
	badNonce := &ErrorResponseBlock{Kind: ErrorResponseBadNonce, SyncWord: 0x1234}
	encoded, err := EncodeBlock(badNonce)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	decoded, _, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	got := decoded.(*ErrorResponseBlock)
	if got.Kind != ErrorResponseBadNonce || got.SyncWord != 0x1234 {
		t.Fatalf("got %+v, want badNonce 0x1234", got)
	}

	nonretryable := &ErrorResponseBlock{Kind: ErrorResponseNonretryable, ErrorCode: 9}
	encoded, err = EncodeBlock(nonretryable)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	decoded, _, err = DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	got = decoded.(*ErrorResponseBlock)
	if got.Kind != ErrorResponseNonretryable || got.ErrorCode != 9 {
		t.Fatalf("got %+v, want nonretryable code 9", got)
	}
}

func TestDecodeBlockUnknownType(t *testing.T) {
	if _, _, err := DecodeBlock([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error for unregistered block type")
	}
}
