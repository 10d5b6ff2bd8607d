package ledger

import (
	"testing"
	"time"
)

func TestRecordBolusRejectsDuplicateSlot(t *testing.T) {
	l := New()
	now := time.Now()
	if err := l.RecordBolus(1.0, now, time.Minute, Uncertain); err != nil {
		t.Fatalf("first RecordBolus: %v", err)
	}
	err := l.RecordBolus(2.0, now, time.Minute, Uncertain)
	if _, ok := err.(ErrSlotOccupied); !ok {
		t.Fatalf("second RecordBolus error = %v, want ErrSlotOccupied", err)
	}
}

func TestFinalizeFinishedDosesMovesElapsedBolus(t *testing.T) {
	l := New()
	start := time.Now().Add(-10 * time.Minute)
	if err := l.RecordBolus(2.0, start, 5*time.Minute, Certain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}
	l.FinalizeFinishedDoses(time.Now())
	if l.Bolus() != nil {
		t.Fatal("bolus still unfinalized after its duration elapsed")
	}
	if len(l.Finalized()) != 1 {
		t.Fatalf("finalized count = %d, want 1", len(l.Finalized()))
	}
}

func TestFinalizeFinishedDosesLeavesUnfinishedBolus(t *testing.T) {
	l := New()
	start := time.Now()
	if err := l.RecordBolus(2.0, start, time.Hour, Certain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}
	l.FinalizeFinishedDoses(time.Now())
	if l.Bolus() == nil {
		t.Fatal("bolus finalized before its duration elapsed")
	}
}

func TestCancelBolusRecordsUnitsNotDelivered(t *testing.T) {
	l := New()
	start := time.Now()
	_ = l.RecordBolus(5.0, start, time.Hour, Certain)
	at := start.Add(2 * time.Minute)
	l.CancelBolus(at, 3.0)
	if l.Bolus().UnitsNotDelivered == nil || *l.Bolus().UnitsNotDelivered != 3.0 {
		t.Fatalf("UnitsNotDelivered = %v, want 3.0", l.Bolus().UnitsNotDelivered)
	}
}

func TestSuspendResumePairingFinalizesBoth(t *testing.T) {
	l := New()
	suspendAt := time.Now()
	resumeAt := suspendAt.Add(time.Hour)
	if err := l.RecordSuspend(suspendAt, Certain); err != nil {
		t.Fatalf("RecordSuspend: %v", err)
	}
	if err := l.RecordResume(resumeAt, Certain); err != nil {
		t.Fatalf("RecordResume: %v", err)
	}
	if l.Suspend() != nil || l.Resume() != nil {
		t.Fatal("suspend/resume still unfinalized after pairing")
	}
	if len(l.Finalized()) != 2 {
		t.Fatalf("finalized count = %d, want 2", len(l.Finalized()))
	}
}

func TestRecordResumeBeforeSuspendDoesNotPair(t *testing.T) {
	l := New()
	suspendAt := time.Now()
	resumeAt := suspendAt.Add(-time.Minute)
	_ = l.RecordSuspend(suspendAt, Certain)
	_ = l.RecordResume(resumeAt, Certain)
	if l.Suspend() == nil || l.Resume() == nil {
		t.Fatal("suspend/resume paired despite resume preceding suspend")
	}
}

func TestDrainClearsFinalizedOnlyOnSuccess(t *testing.T) {
	l := New()
	start := time.Now().Add(-time.Hour)
	_ = l.RecordBolus(1.0, start, time.Minute, Certain)
	l.FinalizeFinishedDoses(time.Now())

	_ = l.RecordTempBasal(1.5, time.Now(), time.Hour, Uncertain)

	var seenFinalized, seenLive int
	err := l.Drain(func(finalized, live []UnfinalizedDose) error {
		seenFinalized = len(finalized)
		seenLive = len(live)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if seenFinalized != 1 || seenLive != 1 {
		t.Fatalf("drain saw finalized=%d live=%d, want 1,1", seenFinalized, seenLive)
	}
	if len(l.Finalized()) != 0 {
		t.Fatal("finalizedDoses not cleared after successful drain")
	}
	if l.TempBasal() == nil {
		t.Fatal("live temp basal cleared by drain")
	}
}

func TestDrainKeepsFinalizedOnHandlerError(t *testing.T) {
	l := New()
	start := time.Now().Add(-time.Hour)
	_ = l.RecordBolus(1.0, start, time.Minute, Certain)
	l.FinalizeFinishedDoses(time.Now())

	err := l.Drain(func(finalized, live []UnfinalizedDose) error {
		return errExport
	})
	if err != errExport {
		t.Fatalf("Drain err = %v, want errExport", err)
	}
	if len(l.Finalized()) != 1 {
		t.Fatal("finalizedDoses cleared despite handler error")
	}
}

func TestUpgradeCertainty(t *testing.T) {
	l := New()
	_ = l.RecordBolus(1.0, time.Now(), time.Hour, Uncertain)
	l.UpgradeCertainty(KindBolus)
	if l.Bolus().Certainty != Certain {
		t.Fatalf("Certainty = %v, want Certain", l.Bolus().Certainty)
	}
}

func TestClearDiscardsSlot(t *testing.T) {
	l := New()
	_ = l.RecordTempBasal(1.0, time.Now(), time.Hour, Uncertain)
	l.Clear(KindTempBasal)
	if l.TempBasal() != nil {
		t.Fatal("TempBasal still present after Clear")
	}
}

var errExport = exportError("export failed")

type exportError string

func (e exportError) Error() string { return string(e) }
