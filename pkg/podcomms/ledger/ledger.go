// Package ledger tracks in-flight and finalized insulin doses for one
// pod session: it ages unfinalized records past their finish times,
// hands out a snapshot for export to a therapy-management host, and
// purges what has been exported.
package ledger

import "time"

// Kind identifies which of the four dose types an UnfinalizedDose is.
type Kind int

const (
	KindBolus Kind = iota
	KindTempBasal
	KindSuspend
	KindResume
)

func (k Kind) String() string {
	switch k {
	case KindBolus:
		return "bolus"
	case KindTempBasal:
		return "tempBasal"
	case KindSuspend:
		return "suspend"
	case KindResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Certainty records whether a dose's disposition is known for sure or
// was left ambiguous by an uncertain command outcome.
type Certainty int

const (
	Certain Certainty = iota
	Uncertain
)

// UnfinalizedDose is one in-flight dose record: a bolus, a temp basal, a
// suspend, or a resume. Amount is in units for a bolus, units/hour for a
// temp basal, and zero for suspend/resume.
type UnfinalizedDose struct {
	Kind       Kind
	StartTime  time.Time
	FinishTime *time.Time
	Amount     float64
	Duration   time.Duration
	Certainty  Certainty

	CancelledAt       *time.Time
	UnitsNotDelivered *float64
}

// finished reports whether the dose's programmed span has elapsed as of
// now. Suspend and resume records never finish on their own; they only
// leave the unfinalized slot by pairing (see Ledger.reconcileSuspendResume).
func (d UnfinalizedDose) finished(now time.Time) bool {
	switch d.Kind {
	case KindBolus, KindTempBasal:
		return !d.StartTime.Add(d.Duration).After(now)
	default:
		return false
	}
}

// Ledger holds the unfinalized and finalized dose records for one pod.
// It enforces at most one unfinalized dose of each kind, except that
// suspend/resume coexist with the dose they interrupt, and pairs off
// suspend/resume records once a resume's start time follows its suspend.
type Ledger struct {
	bolus     *UnfinalizedDose
	tempBasal *UnfinalizedDose
	suspend   *UnfinalizedDose
	resume    *UnfinalizedDose

	finalized []UnfinalizedDose
}

// New returns an empty Ledger.
func New() *Ledger { return &Ledger{} }

// Bolus returns the current unfinalized bolus, if any.
func (l *Ledger) Bolus() *UnfinalizedDose { return l.bolus }

// TempBasal returns the current unfinalized temp basal, if any.
func (l *Ledger) TempBasal() *UnfinalizedDose { return l.tempBasal }

// Suspend returns the current unfinalized suspend, if any.
func (l *Ledger) Suspend() *UnfinalizedDose { return l.suspend }

// Resume returns the current unfinalized resume, if any.
func (l *Ledger) Resume() *UnfinalizedDose { return l.resume }

// Finalized returns the finalized doses pending export. The returned
// slice is a copy; callers must not mutate the ledger's own state
// through it.
func (l *Ledger) Finalized() []UnfinalizedDose {
	out := make([]UnfinalizedDose, len(l.finalized))
	copy(out, l.finalized)
	return out
}

// ErrSlotOccupied is returned by the record* methods when an unfinalized
// dose of the requested kind already exists.
type ErrSlotOccupied struct{ Kind Kind }

func (e ErrSlotOccupied) Error() string {
	return "ledger: unfinalized " + e.Kind.String() + " already recorded"
}

// RecordBolus records a new in-flight bolus. duration is how long the
// pod takes to deliver units at its fixed pulse rate; the dose finalizes
// once start+duration has elapsed. Fails with ErrSlotOccupied if one is
// already recorded.
func (l *Ledger) RecordBolus(units float64, start time.Time, duration time.Duration, certainty Certainty) error {
	if l.bolus != nil {
		return ErrSlotOccupied{Kind: KindBolus}
	}
	l.bolus = &UnfinalizedDose{Kind: KindBolus, StartTime: start, Amount: units, Duration: duration, Certainty: certainty}
	return nil
}

// RecordTempBasal records a new in-flight temp basal.
func (l *Ledger) RecordTempBasal(rate float64, start time.Time, duration time.Duration, certainty Certainty) error {
	if l.tempBasal != nil {
		return ErrSlotOccupied{Kind: KindTempBasal}
	}
	l.tempBasal = &UnfinalizedDose{Kind: KindTempBasal, StartTime: start, Amount: rate, Duration: duration, Certainty: certainty}
	return nil
}

// RecordSuspend records a new in-flight suspend. A suspend coexists with
// whatever dose it interrupts, so it is not blocked by an outstanding
// bolus or temp basal.
func (l *Ledger) RecordSuspend(at time.Time, certainty Certainty) error {
	if l.suspend != nil {
		return ErrSlotOccupied{Kind: KindSuspend}
	}
	l.suspend = &UnfinalizedDose{Kind: KindSuspend, StartTime: at, Certainty: certainty}
	return nil
}

// RecordResume records a new in-flight resume. If it starts after the
// current unfinalized suspend, both are immediately paired off into
// finalizedDoses.
func (l *Ledger) RecordResume(at time.Time, certainty Certainty) error {
	if l.resume != nil {
		return ErrSlotOccupied{Kind: KindResume}
	}
	l.resume = &UnfinalizedDose{Kind: KindResume, StartTime: at, Certainty: certainty}
	l.reconcileSuspendResume()
	return nil
}

// reconcileSuspendResume pairs suspend and resume: once a resume's start time
// follows the outstanding suspend's start time, the pair is complete and
// both move to finalizedDoses together.
func (l *Ledger) reconcileSuspendResume() {
	if l.suspend == nil || l.resume == nil {
		return
	}
	if l.resume.StartTime.Before(l.suspend.StartTime) {
		return
	}
	l.finalized = append(l.finalized, *l.suspend, *l.resume)
	l.suspend = nil
	l.resume = nil
}

// CancelBolus marks the current unfinalized bolus's finish time as at,
// truncating its duration to end there, and records how many units were
// not delivered. No-op if there is no unfinalized bolus. The bolus stays
// in its slot until the next FinalizeFinishedDoses at or after at.
func (l *Ledger) CancelBolus(at time.Time, remaining float64) {
	if l.bolus == nil {
		return
	}
	l.bolus.Duration = at.Sub(l.bolus.StartTime)
	l.bolus.FinishTime = &at
	l.bolus.CancelledAt = &at
	l.bolus.UnitsNotDelivered = &remaining
}

// CancelTempBasal truncates the current unfinalized temp basal's
// duration to end at at. No-op if there is no unfinalized temp basal.
func (l *Ledger) CancelTempBasal(at time.Time) {
	if l.tempBasal == nil {
		return
	}
	l.tempBasal.Duration = at.Sub(l.tempBasal.StartTime)
	l.tempBasal.CancelledAt = &at
}

// FinalizeFinishedDoses moves any bolus or temp basal whose
// startTime+duration has elapsed as of now into finalizedDoses, freeing
// its slot. Suspend and resume only finalize via pairing.
func (l *Ledger) FinalizeFinishedDoses(now time.Time) {
	if l.bolus != nil && l.bolus.finished(now) {
		l.finalized = append(l.finalized, *l.bolus)
		l.bolus = nil
	}
	if l.tempBasal != nil && l.tempBasal.finished(now) {
		l.finalized = append(l.finalized, *l.tempBasal)
		l.tempBasal = nil
	}
}

// UpgradeCertainty promotes an unfinalized dose of the given kind from
// Uncertain to Certain, used by Pod State's status-response reconciliation
// once the pod's own report resolves the ambiguity. No-op if there is no
// such dose or it is already certain.
func (l *Ledger) UpgradeCertainty(kind Kind) {
	slot := l.slot(kind)
	if slot != nil && *slot != nil {
		(*slot).Certainty = Certain
	}
}

// Clear discards the unfinalized dose of the given kind outright, used
// when pod state reconciliation determines a recorded dose never
// actually started (see the certainty reconciliation table in the
// podstate package).
func (l *Ledger) Clear(kind Kind) {
	slot := l.slot(kind)
	if slot != nil {
		*slot = nil
	}
}

func (l *Ledger) slot(kind Kind) **UnfinalizedDose {
	switch kind {
	case KindBolus:
		return &l.bolus
	case KindTempBasal:
		return &l.tempBasal
	case KindSuspend:
		return &l.suspend
	case KindResume:
		return &l.resume
	default:
		return nil
	}
}

// RestoreFinalized replaces the finalized-dose buffer wholesale. Used
// only when reconstructing a Ledger from a persisted blob, where the
// doses already satisfied every invariant when they were written.
func (l *Ledger) RestoreFinalized(doses []UnfinalizedDose) {
	l.finalized = append([]UnfinalizedDose(nil), doses...)
}

// RestoreSlot installs d into the unfinalized slot matching d.Kind,
// bypassing the at-most-one guard. Used only when reconstructing a
// Ledger from a persisted blob.
func (l *Ledger) RestoreSlot(d UnfinalizedDose) {
	slot := l.slot(d.Kind)
	if slot == nil {
		return
	}
	dose := d
	*slot = &dose
}

// DrainHandler receives the full set of doses being exported: finalized
// records plus any still-live unfinalized ones.
type DrainHandler func(finalized []UnfinalizedDose, live []UnfinalizedDose) error

// Drain calls handler with the finalized doses plus every currently live
// unfinalized dose. If handler returns nil, finalizedDoses is cleared;
// live doses are never cleared by Drain since they have not finished.
func (l *Ledger) Drain(handler DrainHandler) error {
	live := make([]UnfinalizedDose, 0, 4)
	for _, d := range []*UnfinalizedDose{l.bolus, l.tempBasal, l.suspend, l.resume} {
		if d != nil {
			live = append(live, *d)
		}
	}
	if err := handler(l.Finalized(), live); err != nil {
		return err
	}
	l.finalized = nil
	return nil
}
