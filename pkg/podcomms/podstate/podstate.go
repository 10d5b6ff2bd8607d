// Package podstate holds the single unit of persisted per-pod state: the
// pairing identifiers, nonce generator, setup progress, dose ledger, and
// the fault and alert bookkeeping a session mutates as it talks to one
// pod. Every mutation happens on the owning session's serial queue; this
// package enforces the state invariants but takes no lock of its own.
package podstate

import (
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/nonce"
)

// SetupProgress is the ordered phase of the pod's lifecycle, from pairing
// to ready-for-delivery. Ordinal order matters: advancing is permitted only
// to an equal or higher value, except for the terminal ActivationTimeout.
type SetupProgress int

const (
	AddressAssigned SetupProgress = iota
	PodConfigured
	StartingPrime
	Priming
	SettingInitialBasalSchedule
	InitialBasalScheduleSet
	StartingInsertCannula
	CannulaInserting
	Completed
	ActivationTimeout
)

func (p SetupProgress) String() string {
	switch p {
	case AddressAssigned:
		return "addressAssigned"
	case PodConfigured:
		return "podConfigured"
	case StartingPrime:
		return "startingPrime"
	case Priming:
		return "priming"
	case SettingInitialBasalSchedule:
		return "settingInitialBasalSchedule"
	case InitialBasalScheduleSet:
		return "initialBasalScheduleSet"
	case StartingInsertCannula:
		return "startingInsertCannula"
	case CannulaInserting:
		return "cannulaInserting"
	case Completed:
		return "completed"
	case ActivationTimeout:
		return "activationTimeout"
	default:
		return "unknown"
	}
}

// SuspendTag discriminates the two states SuspendState can hold.
type SuspendTag int

const (
	Suspended SuspendTag = iota
	Resumed
)

func (t SuspendTag) String() string {
	if t == Suspended {
		return "suspended"
	}
	return "resumed"
}

// SuspendState is a tagged {suspended(at), resumed(at)} value.
type SuspendState struct {
	Tag SuspendTag
	At  time.Time
}

// FaultRecord is the first pod fault ever observed for this pod. Once set
// it is never replaced.
type FaultRecord struct {
	FaultEventCode    uint8
	PodProgressStatus wire.PodProgress
	BolusNotDelivered float64
	ObservedAt        time.Time
}

// InsulinMeasurements is a snapshot of cumulative delivered units and
// reservoir level, valid as of a point in time.
type InsulinMeasurements struct {
	TotalInsulinDelivered float64
	ReservoirLevel        float64
	ValidAt               time.Time
}

// MessageTransportState is the packet and message sequence counters a
// session persists across restarts so it never reuses a sequence number.
type MessageTransportState struct {
	PacketNumber  uint8
	MessageNumber uint8
}

// PodState is the single unit of persisted controller-side state for one
// pod. All mutation happens on the owning session's serial queue.
type PodState struct {
	Address uint32

	PIVersion string
	PMVersion string
	Lot       uint32
	Tid       uint32

	NonceState *nonce.Generator

	ActivatedAt time.Time
	ExpiresAt   time.Time

	SetupProgress          SetupProgress
	SuspendState           SuspendState
	Fault                  *FaultRecord
	ConfiguredAlerts       map[wire.AlertSlot]wire.PodAlert
	ActiveAlertSlots       wire.AlertSet
	LastInsulinMeasurements *InsulinMeasurements
	MessageTransportState  MessageTransportState
	PrimeFinishTime        *time.Time
	SetupUnitsDelivered    float64

	Ledger *ledger.Ledger
}

// New returns a freshly paired PodState: address assigned, nonce
// generator seeded from lot/tid, everything else at its zero value.
func New(address, lot, tid uint32, seed uint16, piVersion, pmVersion string) *PodState {
	return &PodState{
		Address:          address,
		PIVersion:        piVersion,
		PMVersion:        pmVersion,
		Lot:              lot,
		Tid:              tid,
		NonceState:       nonce.New(lot, tid, seed),
		SetupProgress:    AddressAssigned,
		ConfiguredAlerts: make(map[wire.AlertSlot]wire.PodAlert),
		Ledger:           ledger.New(),
	}
}

// ErrInvalidAddress reports a non-setup response whose address does not
// match podState.Address. It must never mutate state.
type ErrInvalidAddress struct {
	Got, Expected uint32
}

func (e ErrInvalidAddress) Error() string {
	return "podstate: invalid address"
}

// CheckAddress rejects a mismatched address. Callers must call this before applying any
// response-derived mutation.
func (s *PodState) CheckAddress(got uint32) error {
	if got != s.Address {
		return ErrInvalidAddress{Got: got, Expected: s.Address}
	}
	return nil
}

// AdvanceSetupProgress only moves progress to an equal or
// higher ordinal, except the terminal ActivationTimeout transition which
// is always permitted regardless of current progress.
func (s *PodState) AdvanceSetupProgress(next SetupProgress) {
	if next == ActivationTimeout || next >= s.SetupProgress {
		s.SetupProgress = next
	}
}

// UpdateExpiresAt damps oscillation from round-trip jitter in the pod's
// self-reported clock: the new value is only applied if it is
// earlier than the current one, or later by more than one minute. This
// damps oscillation from round-trip jitter in the pod's self-reported
// clock.
func (s *PodState) UpdateExpiresAt(next time.Time) {
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = next
		return
	}
	if next.Before(s.ExpiresAt) || next.Sub(s.ExpiresAt) > time.Minute {
		s.ExpiresAt = next
	}
}

// CaptureFault is sticky: the first call wins; later calls are no-ops.
// Returns true if this call actually recorded the fault.
func (s *PodState) CaptureFault(f FaultRecord) bool {
	if s.Fault != nil {
		return false
	}
	s.Fault = &f
	return true
}
