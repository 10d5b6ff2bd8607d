package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kaylen-rios/podcomms/internal/logger"
	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/errors"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

// handleFault captures the first fault observed for this pod (sticky:
// later faults never replace it), finalizes any in-flight doses with the
// pod-reported undelivered units, and applies the detailed status. If
// shouldThrow is true it returns an error the caller propagates;
// otherwise it returns nil so the caller can report the fault without
// aborting (used by getDetailedStatus).
func (s *Session) handleFault(ctx context.Context, ds wire.DetailedStatus, shouldThrow bool) error {
	s.assertOnQueue()

	t := now()
	var captured bool
	s.mutate(func(state *podstate.PodState) {
		captured = state.CaptureFault(podstate.FaultRecord{
			FaultEventCode:    ds.FaultEventCode,
			PodProgressStatus: ds.PodProgress,
			BolusNotDelivered: ds.BolusNotDelivered,
			ObservedAt:        t,
		})
		if captured {
			handleCancelDosing(state.Ledger, wire.DeliveryAll, ds.BolusNotDelivered, t)
		}
		state.UpdateFromDetailedStatusResponse(ds, t, s.cfg.NominalPodLife)
	})

	if captured {
		s.metrics.recordFault()
		logger.WarnCtx(ctx, "pod fault captured", logger.FaultCode(ds.FaultEventCode))
	}

	if !shouldThrow {
		return nil
	}
	if ds.PodProgress == wire.PodProgressActivationTimeExceeded {
		return errors.New(errors.CodeActivationTimeExceeded, "activation time exceeded")
	}
	return errors.Wrap(errors.CodePodFault, fmt.Errorf("fault event code %d", ds.FaultEventCode))
}

// handleCancelDosing finalizes every live dose matching a bit in
// deliveryType, using bolusNotDelivered as the undelivered-units figure
// for a live bolus. Shared by cancelDelivery and the fault handler.
func handleCancelDosing(l *ledger.Ledger, deliveryType wire.DeliveryType, bolusNotDelivered float64, at time.Time) {
	if deliveryType.Has(wire.DeliveryBolus) && l.Bolus() != nil {
		l.CancelBolus(at, bolusNotDelivered)
	}
	if deliveryType.Has(wire.DeliveryTempBasal) && l.TempBasal() != nil {
		l.CancelTempBasal(at)
	}
	l.FinalizeFinishedDoses(at)
}
