package podstate

import (
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
)

// UpdateFromStatusResponse applies a short status response, in order: (a)
// recompute expiresAt from the pod's self-reported TimeActive and
// nominalPodLife, damped against jitter by UpdateExpiresAt; (b) reconcile
// delivery-status bits against uncertain doses; (c) overwrite the
// cumulative insulin/reservoir snapshot.
func (s *PodState) UpdateFromStatusResponse(resp wire.StatusResponseBlock, now time.Time, nominalPodLife time.Duration) {
	s.UpdateExpiresAt(now.Add(nominalPodLife - resp.TimeActive))
	s.reconcileDeliveryStatus(resp.DeliveryStatus, now)
	s.LastInsulinMeasurements = &InsulinMeasurements{
		TotalInsulinDelivered: resp.TotalInsulinDelivered,
		ReservoirLevel:        resp.ReservoirLevel,
		ValidAt:               now,
	}
}

// UpdateFromDetailedStatusResponse applies a full detailed-status report:
// the same effects as UpdateFromStatusResponse plus overwriting the
// unacknowledged alert bitset.
func (s *PodState) UpdateFromDetailedStatusResponse(ds wire.DetailedStatus, now time.Time, nominalPodLife time.Duration) {
	s.UpdateExpiresAt(now.Add(nominalPodLife - ds.TimeActive))
	s.reconcileDeliveryStatus(ds.DeliveryStatus, now)
	s.LastInsulinMeasurements = &InsulinMeasurements{
		TotalInsulinDelivered: ds.TotalInsulinDelivered,
		ReservoirLevel:        ds.ReservoirLevel,
		ValidAt:               now,
	}
	s.ActiveAlertSlots = ds.UnacknowledgedAlerts
}

// reconcileDeliveryStatus is the certainty reconciliation table: each
// uncertain record either upgrades to certain or is dropped outright,
// depending on what the pod's own delivery-status bits say. Suspend/
// resume pairing is pure start-time ordering and is applied by the
// ledger itself when a resume is recorded, independent of certainty.
func (s *PodState) reconcileDeliveryStatus(ds wire.DeliveryStatus, now time.Time) {
	l := s.Ledger

	if b := l.Bolus(); b != nil && b.Certainty == ledger.Uncertain {
		if ds.Bolusing {
			l.UpgradeCertainty(ledger.KindBolus)
		} else {
			l.Clear(ledger.KindBolus)
		}
	}

	if tb := l.TempBasal(); tb != nil && tb.Certainty == ledger.Uncertain {
		if ds.TempBasalRunning {
			l.UpgradeCertainty(ledger.KindTempBasal)
		} else {
			l.Clear(ledger.KindTempBasal)
		}
	}

	if r := l.Resume(); r != nil && r.Certainty == ledger.Uncertain {
		if !ds.Suspended {
			l.UpgradeCertainty(ledger.KindResume)
		} else {
			l.Clear(ledger.KindResume)
		}
	}

	if sus := l.Suspend(); sus != nil && sus.Certainty == ledger.Uncertain {
		if ds.Suspended {
			l.UpgradeCertainty(ledger.KindSuspend)
		} else {
			l.Clear(ledger.KindSuspend)
		}
	}

	l.FinalizeFinishedDoses(now)
}
