package podstate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
)

func sampleState(t *testing.T) *PodState {
	t.Helper()
	s := New(0x1f02e6a1, 43620, 7, 99, "pi1.3.0", "pm1.3.0")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ActivatedAt = now.Add(-2 * time.Hour)
	s.ExpiresAt = now.Add(70 * time.Hour)
	s.AdvanceSetupProgress(Completed)
	s.SuspendState = SuspendState{Tag: Resumed, At: now.Add(-time.Hour)}
	s.ActiveAlertSlots = wire.AlertSet(0x05)
	s.SetupUnitsDelivered = 3.1
	s.ConfiguredAlerts[3] = wire.PodAlert{
		Slot:          3,
		AlertAfter:    10 * time.Minute,
		AlertDuration: 5 * time.Minute,
		Beep:          wire.BipBip,
		BeepRepeat:    true,
	}
	fault := FaultRecord{FaultEventCode: 6, PodProgressStatus: wire.PodProgressActivationTimeExceeded, BolusNotDelivered: 0.4, ObservedAt: now}
	s.CaptureFault(fault)
	pft := now.Add(-3 * time.Hour)
	s.PrimeFinishTime = &pft
	s.LastInsulinMeasurements = &InsulinMeasurements{TotalInsulinDelivered: 42.3, ReservoirLevel: 150, ValidAt: now}

	_ = s.Ledger.RecordTempBasal(1.2, now.Add(-30*time.Minute), time.Hour, ledger.Uncertain)

	finishedStart := now.Add(-2 * time.Hour)
	_ = s.Ledger.RecordBolus(2.0, finishedStart, time.Second, ledger.Certain)
	s.Ledger.FinalizeFinishedDoses(finishedStart.Add(time.Minute))

	return s
}

func TestBlobRoundTrip(t *testing.T) {
	original := sampleState(t)
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded, time.Now())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Address != original.Address {
		t.Errorf("Address = 0x%x, want 0x%x", decoded.Address, original.Address)
	}
	if decoded.Lot != original.Lot || decoded.Tid != original.Tid {
		t.Errorf("Lot/Tid = %d/%d, want %d/%d", decoded.Lot, decoded.Tid, original.Lot, original.Tid)
	}
	if decoded.SetupProgress != original.SetupProgress {
		t.Errorf("SetupProgress = %v, want %v", decoded.SetupProgress, original.SetupProgress)
	}
	if !decoded.ExpiresAt.Equal(original.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", decoded.ExpiresAt, original.ExpiresAt)
	}
	if diff := cmp.Diff(original.Fault, decoded.Fault, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("Fault mismatch (-want +got):\n%s", diff)
	}
	if decoded.SuspendState.Tag != original.SuspendState.Tag {
		t.Errorf("SuspendState.Tag = %v, want %v", decoded.SuspendState.Tag, original.SuspendState.Tag)
	}
	if decoded.ActiveAlertSlots != original.ActiveAlertSlots {
		t.Errorf("ActiveAlertSlots = %v, want %v", decoded.ActiveAlertSlots, original.ActiveAlertSlots)
	}
	if len(decoded.ConfiguredAlerts) != len(original.ConfiguredAlerts) {
		t.Errorf("ConfiguredAlerts len = %d, want %d", len(decoded.ConfiguredAlerts), len(original.ConfiguredAlerts))
	}
	if len(decoded.Ledger.Finalized()) != len(original.Ledger.Finalized()) {
		t.Errorf("Finalized doses = %d, want %d", len(decoded.Ledger.Finalized()), len(original.Ledger.Finalized()))
	}
	if decoded.Ledger.TempBasal() == nil {
		t.Error("unfinalized temp basal lost in round trip")
	}

	table1, idx1 := original.NonceState.Snapshot()
	table2, idx2 := decoded.NonceState.Snapshot()
	if idx1 != idx2 {
		t.Errorf("nonce idx = %d, want %d", idx2, idx1)
	}
	if diff := cmp.Diff(table1, table2); diff != "" {
		t.Errorf("nonce table mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsTamperedBlob(t *testing.T) {
	encoded, err := Encode(sampleState(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)-10] ^= 0xff
	if _, err := Decode(tampered, time.Now()); err == nil {
		t.Fatal("Decode accepted a tampered blob")
	}
}

func TestDecodeMigratesLegacySuspendedBool(t *testing.T) {
	legacy := []byte("address: 42\nlot: 43620\ntid: 0\nsuspended: true\n")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := Decode(legacy, now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.SuspendState.Tag != Suspended {
		t.Fatalf("SuspendState.Tag = %v, want Suspended", s.SuspendState.Tag)
	}
	if !s.SuspendState.At.Equal(now) {
		t.Fatalf("SuspendState.At = %v, want decode-time now %v", s.SuspendState.At, now)
	}
}
