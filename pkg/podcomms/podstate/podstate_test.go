package podstate

import (
	"testing"
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
)

func TestCheckAddressRejectsMismatch(t *testing.T) {
	s := New(0x1f02e6a1, 43620, 0, 0, "pi1.0", "pm1.0")
	if err := s.CheckAddress(0x1f02e6a1); err != nil {
		t.Fatalf("CheckAddress with matching address: %v", err)
	}
	if err := s.CheckAddress(0xdeadbeef); err == nil {
		t.Fatal("CheckAddress with mismatched address did not error")
	}
}

func TestAdvanceSetupProgressMonotonic(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	s.AdvanceSetupProgress(Priming)
	s.AdvanceSetupProgress(PodConfigured)
	if s.SetupProgress != Priming {
		t.Fatalf("SetupProgress regressed to %v", s.SetupProgress)
	}
}

func TestAdvanceSetupProgressAllowsActivationTimeoutFromAnyPhase(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	s.AdvanceSetupProgress(Priming)
	s.AdvanceSetupProgress(ActivationTimeout)
	if s.SetupProgress != ActivationTimeout {
		t.Fatalf("SetupProgress = %v, want ActivationTimeout", s.SetupProgress)
	}
}

func TestUpdateExpiresAtDampsSmallIncrease(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	base := time.Now()
	s.ExpiresAt = base
	s.UpdateExpiresAt(base.Add(30 * time.Second))
	if !s.ExpiresAt.Equal(base) {
		t.Fatalf("ExpiresAt moved by a sub-minute increase: %v", s.ExpiresAt)
	}
}

func TestUpdateExpiresAtAcceptsLargeIncrease(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	base := time.Now()
	s.ExpiresAt = base
	next := base.Add(2 * time.Minute)
	s.UpdateExpiresAt(next)
	if !s.ExpiresAt.Equal(next) {
		t.Fatalf("ExpiresAt did not move on a >1min increase: %v", s.ExpiresAt)
	}
}

func TestUpdateExpiresAtAcceptsAnyDecrease(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	base := time.Now()
	s.ExpiresAt = base
	next := base.Add(-1 * time.Second)
	s.UpdateExpiresAt(next)
	if !s.ExpiresAt.Equal(next) {
		t.Fatalf("ExpiresAt did not move on a decrease: %v", s.ExpiresAt)
	}
}

func TestCaptureFaultIsSticky(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	first := FaultRecord{FaultEventCode: 7, ObservedAt: time.Now()}
	if !s.CaptureFault(first) {
		t.Fatal("first CaptureFault returned false")
	}
	second := FaultRecord{FaultEventCode: 9, ObservedAt: time.Now()}
	if s.CaptureFault(second) {
		t.Fatal("second CaptureFault returned true, fault should be sticky")
	}
	if s.Fault.FaultEventCode != 7 {
		t.Fatalf("Fault.FaultEventCode = %d, want 7 (first fault preserved)", s.Fault.FaultEventCode)
	}
}

func TestReconcileUncertainBolusUpgradesOnConfirmation(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	start := time.Now()
	_ = s.Ledger.RecordBolus(1.5, start, time.Hour, ledger.Uncertain)

	s.UpdateFromStatusResponse(wire.StatusResponseBlock{
		DeliveryStatus: wire.DeliveryStatus{Bolusing: true},
	}, time.Now(), 72*time.Hour)

	if s.Ledger.Bolus() == nil {
		t.Fatal("bolus dropped despite pod reporting bolusing=true")
	}
	if s.Ledger.Bolus().Certainty != ledger.Certain {
		t.Fatalf("Certainty = %v, want Certain", s.Ledger.Bolus().Certainty)
	}
}

func TestReconcileUncertainBolusDroppedOnDenial(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	_ = s.Ledger.RecordBolus(1.5, time.Now(), time.Hour, ledger.Uncertain)

	s.UpdateFromStatusResponse(wire.StatusResponseBlock{
		DeliveryStatus: wire.DeliveryStatus{Bolusing: false},
	}, time.Now(), 72*time.Hour)

	if s.Ledger.Bolus() != nil {
		t.Fatal("bolus record survived despite pod reporting bolusing=false")
	}
}

func TestReconcileIgnoresCertainRecords(t *testing.T) {
	s := New(1, 43620, 0, 0, "", "")
	_ = s.Ledger.RecordTempBasal(1.0, time.Now(), time.Hour, ledger.Certain)

	s.UpdateFromStatusResponse(wire.StatusResponseBlock{
		DeliveryStatus: wire.DeliveryStatus{TempBasalRunning: false},
	}, time.Now(), 72*time.Hour)

	if s.Ledger.TempBasal() == nil {
		t.Fatal("certain temp basal was dropped by reconciliation")
	}
}
