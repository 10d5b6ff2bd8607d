package wire

import "time"

// DeliveryType is a bitset identifying which delivery channel(s) a
// CancelDelivery command (or its resulting effect) applies to.
type DeliveryType uint8

const (
	DeliveryNone      DeliveryType = 0
	DeliveryBasal     DeliveryType = 1 << 0
	DeliveryTempBasal DeliveryType = 1 << 1
	DeliveryBolus     DeliveryType = 1 << 2

	DeliveryAllButBasal = DeliveryTempBasal | DeliveryBolus
	DeliveryAll         = DeliveryBasal | DeliveryTempBasal | DeliveryBolus
)

func (d DeliveryType) Has(bit DeliveryType) bool { return d&bit != 0 }

// BeepType selects the audible pattern the pod plays alongside a command.
type BeepType uint8

const (
	NoBeep BeepType = iota
	BeepBeep
	BipBip
	Beeeeeep
)

// PodProgress is the pod's self-reported lifecycle phase, returned in
// status and detailed-status responses. It is distinct from the
// controller-side podstate.SetupProgress ordinal: this is what the pod
// says about itself on the wire; the controller's SetupProgress is the
// session's own bookkeeping, advanced idempotently in response to these
// values.
type PodProgress uint8

const (
	PodProgressInitialized PodProgress = iota
	PodProgressTankPowerActivated
	PodProgressTankFillCompleted
	PodProgressPairingSuccess
	PodProgressPriming
	PodProgressPrimingCompleted
	PodProgressBasalInitialized
	PodProgressInsertingCannula
	PodProgressReadyForDelivery
	PodProgressAboveFiftyUnits
	PodProgressFiftyOrLessUnits
	PodProgressZeroUnits
	PodProgressActivationTimeExceeded
	PodProgressInactive
)

func (p PodProgress) String() string {
	switch p {
	case PodProgressInitialized:
		return "initialized"
	case PodProgressTankPowerActivated:
		return "tankPowerActivated"
	case PodProgressTankFillCompleted:
		return "tankFillCompleted"
	case PodProgressPairingSuccess:
		return "pairingSuccess"
	case PodProgressPriming:
		return "priming"
	case PodProgressPrimingCompleted:
		return "primingCompleted"
	case PodProgressBasalInitialized:
		return "basalInitialized"
	case PodProgressInsertingCannula:
		return "insertingCannula"
	case PodProgressReadyForDelivery:
		return "readyForDelivery"
	case PodProgressAboveFiftyUnits:
		return "aboveFiftyUnits"
	case PodProgressFiftyOrLessUnits:
		return "fiftyOrLessUnits"
	case PodProgressZeroUnits:
		return "zeroUnits"
	case PodProgressActivationTimeExceeded:
		return "activationTimeExceeded"
	case PodProgressInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// DeliveryStatus mirrors the pod's live delivery bits as reported in a
// status or detailed-status response.
type DeliveryStatus struct {
	Bolusing         bool
	TempBasalRunning bool
	Suspended        bool
	Priming          bool
	CannulaInserting bool
}

// AlertSlot identifies one of the pod's eight alert configuration slots.
type AlertSlot uint8

const numAlertSlots = 8

// AlertSet is a bitset over the eight AlertSlots, used both for
// activeAlertSlots (which alerts are currently firing) and for the
// alertsToAcknowledge argument of AcknowledgeAlert.
type AlertSet uint8

func (s AlertSet) Has(slot AlertSlot) bool { return s&(1<<slot) != 0 }
func (s AlertSet) With(slot AlertSlot) AlertSet { return s | (1 << slot) }
func (s AlertSet) Without(slot AlertSlot) AlertSet { return s &^ (1 << slot) }

// PodAlert is one configured alert: when it fires (relative to now or to
// a future event, encoded as AlertAfter), how long it stays active, and
// how it should be presented.
type PodAlert struct {
	Slot         AlertSlot
	AlertAfter   time.Duration
	AlertDuration time.Duration
	Beep         BeepType
	BeepRepeat   bool
	Silent       bool
}

// BasalSchedule is 48 half-hour segments of units/hour, the standard pod
// basal-rate representation.
type BasalSchedule struct {
	SegmentsPerHour [48]float64
}

// DetailedStatus is the pod's full self-report, returned by
// GetStatus(detailedStatus) and embedded in any fault-bearing response.
type DetailedStatus struct {
	IsFaulted             bool
	FaultEventCode        uint8
	BolusNotDelivered     float64
	PodProgress           PodProgress
	DeliveryStatus        DeliveryStatus
	TotalInsulinDelivered float64
	ReservoirLevel        float64
	TimeActive            time.Duration
	UnacknowledgedAlerts  AlertSet
}
