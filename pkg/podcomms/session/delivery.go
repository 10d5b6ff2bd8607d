package session

import (
	"context"
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/config"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/errors"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

func matchPodInfo(b wire.Block) (*wire.PodInfoResponseBlock, bool) {
	v, ok := b.(*wire.PodInfoResponseBlock)
	return v, ok
}

const numAlertSlots = 8

// Bolus delivers units, guarded against a bolus already in flight. On a
// transport failure it polls status to resolve the ambiguity: a
// confirmed-bolusing pod still yields success (at the cost of a delayed
// start timestamp), a confirmed-not-bolusing pod yields certainFailure,
// and a failed poll leaves the outcome genuinely uncertain.
func (s *Session) Bolus(ctx context.Context, cfg config.SessionConfig, units float64, beep wire.BeepType, reminderInterval time.Duration) (DeliveryCommandResult, error) {
	s.assertOnQueue()
	if s.state.Ledger.Bolus() != nil {
		return DeliveryCertainFailure, errors.New(errors.CodeUnfinalizedBolus, "bolus already in flight")
	}

	schedule := &wire.SetInsulinScheduleBlock{Kind: wire.ScheduleBolus, BolusUnits: units, BolusPulseInterval: cfg.SecondsPerBolusPulse}
	extra := &wire.BolusExtraBlock{Units: units, Beep: beep, ReminderInterval: reminderInterval}
	bolusDuration := cfg.BolusDuration(units)
	_, err := send(ctx, s, []wire.Block{schedule, extra}, false, matchStatus)
	if err == nil {
		start := now().Add(cfg.CommsOffset)
		s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordBolus(units, start, bolusDuration, ledger.Certain) })
		return DeliverySuccess, nil
	}

	status, pollErr := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
	if pollErr != nil {
		start := now()
		s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordBolus(units, start, bolusDuration, ledger.Uncertain) })
		return DeliveryUncertainFailure, nil
	}
	if status.DeliveryStatus.Bolusing {
		start := now().Add(cfg.CommsOffset)
		s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordBolus(units, start, bolusDuration, ledger.Certain) })
		return DeliverySuccess, nil
	}
	return DeliveryCertainFailure, nil
}

// SetTempBasal programs a temp basal, guarded against a bolus or temp
// basal already in flight. Unlike Bolus, a transport failure never
// triggers a verification poll: temp basal is less safety-critical, so
// the command is simply recorded uncertain and left for later
// reconciliation against a status response.
func (s *Session) SetTempBasal(ctx context.Context, rate float64, duration time.Duration, beep wire.BeepType) (DeliveryCommandResult, error) {
	s.assertOnQueue()
	if s.state.Ledger.Bolus() != nil {
		return DeliveryCertainFailure, errors.New(errors.CodeUnfinalizedBolus, "bolus in progress blocks temp basal")
	}
	if s.state.Ledger.TempBasal() != nil {
		return DeliveryCertainFailure, errors.New(errors.CodeUnfinalizedTempBasal, "temp basal already in flight")
	}

	schedule := &wire.SetInsulinScheduleBlock{Kind: wire.ScheduleTempBasal, TempBasalRate: rate, TempBasalDuration: duration}
	extra := &wire.TempBasalExtraBlock{Rate: rate, Duration: duration, Beep: beep}
	start := now()
	_, err := send(ctx, s, []wire.Block{schedule, extra}, false, matchStatus)
	if err != nil {
		s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordTempBasal(rate, start, duration, ledger.Uncertain) })
		return DeliveryUncertainFailure, nil
	}
	s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordTempBasal(rate, start, duration, ledger.Certain) })
	return DeliverySuccess, nil
}

// CancelDelivery stops one or more delivery channels. If beep is
// audible and every channel is being cancelled, it sends two commands
// (a silent allButBasal followed by a beeping basal) so the pod emits
// one beep sequence instead of three.
func (s *Session) CancelDelivery(ctx context.Context, deliveryType wire.DeliveryType, beep wire.BeepType) (CancelDeliveryResult, error) {
	s.assertOnQueue()

	var blocks []wire.Block
	if beep != wire.NoBeep && deliveryType == wire.DeliveryAll {
		blocks = []wire.Block{
			&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryAllButBasal, Beep: wire.NoBeep},
			&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryBasal, Beep: beep},
		}
	} else {
		blocks = []wire.Block{&wire.CancelDeliveryBlock{DeliveryType: deliveryType, Beep: beep}}
	}

	at := now()
	status, err := send(ctx, s, blocks, false, matchStatus)
	if err != nil {
		return CancelUncertainFailure, err
	}

	s.mutate(func(st *podstate.PodState) {
		handleCancelDosing(st.Ledger, deliveryType, status.BolusNotDelivered, at)
		if deliveryType.Has(wire.DeliveryBasal) {
			_ = st.Ledger.RecordSuspend(at, ledger.Certain)
			st.SuspendState = podstate.SuspendState{Tag: podstate.Suspended, At: at}
		} else if deliveryType.Has(wire.DeliveryTempBasal) {
			_ = st.Ledger.RecordResume(at, ledger.Certain)
		}
		st.UpdateFromStatusResponse(*status, at, s.cfg.NominalPodLife)
	})
	return CancelSuccess, nil
}

// setBasalSchedule is the shared implementation behind both the public
// SetBasalSchedule operation and the setup sequencer's initial basal
// install: it records a resume dose (certain on success, uncertain and
// rethrown on transport failure) and updates suspendState on success.
func (s *Session) setBasalSchedule(ctx context.Context, schedule wire.BasalSchedule, offset time.Duration, beep wire.BeepType) (*wire.StatusResponseBlock, error) {
	s.assertOnQueue()
	cmd := &wire.SetInsulinScheduleBlock{Kind: wire.ScheduleBasal, Schedule: schedule, UTCOffset: offset}
	extra := &wire.BasalScheduleExtraBlock{Schedule: schedule, UTCOffset: offset, Beep: beep}

	status, err := send(ctx, s, []wire.Block{cmd, extra}, false, matchStatus)
	if err != nil {
		at := now()
		s.mutate(func(st *podstate.PodState) { _ = st.Ledger.RecordResume(at, ledger.Uncertain) })
		return nil, err
	}

	at := now()
	s.mutate(func(st *podstate.PodState) {
		_ = st.Ledger.RecordResume(at, ledger.Certain)
		st.SuspendState = podstate.SuspendState{Tag: podstate.Resumed, At: at}
	})
	return status, nil
}

// SetBasalSchedule installs a new basal schedule.
func (s *Session) SetBasalSchedule(ctx context.Context, schedule wire.BasalSchedule, offset time.Duration, beep wire.BeepType) (DeliveryCommandResult, error) {
	if _, err := s.setBasalSchedule(ctx, schedule, offset, beep); err != nil {
		return DeliveryUncertainFailure, err
	}
	return DeliverySuccess, nil
}

// CancelNone sends a no-op cancel, used both as a plain status read and
// as a nonce-validation probe that never changes delivery state.
func (s *Session) CancelNone(ctx context.Context) (*wire.StatusResponseBlock, error) {
	s.assertOnQueue()
	status, err := send(ctx, s, []wire.Block{&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryNone, Beep: wire.NoBeep}}, false, matchStatus)
	if err != nil {
		return nil, err
	}
	s.mutate(func(st *podstate.PodState) { st.UpdateFromStatusResponse(*status, now(), s.cfg.NominalPodLife) })
	return status, nil
}

// GetStatus reads the pod's short status report. If UseCancelNoneForStatus
// was set, it goes through CancelNone instead of a plain GetStatus.
func (s *Session) GetStatus(ctx context.Context) (*wire.StatusResponseBlock, error) {
	s.assertOnQueue()
	if s.useCancelNoneForStatus {
		return s.CancelNone(ctx)
	}
	status, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
	if err != nil {
		return nil, err
	}
	s.mutate(func(st *podstate.PodState) { st.UpdateFromStatusResponse(*status, now(), s.cfg.NominalPodLife) })
	return status, nil
}

// GetDetailedStatus reads the pod's full self-report. If it reports a
// fault and none is captured yet, the fault handler runs without
// throwing: the caller receives the detailed status either way.
func (s *Session) GetDetailedStatus(ctx context.Context) (wire.DetailedStatus, error) {
	s.assertOnQueue()
	resp, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoDetailedStatus}}, false, matchPodInfo)
	if err != nil {
		return wire.DetailedStatus{}, err
	}
	ds := resp.Status
	if ds.IsFaulted && s.state.Fault == nil {
		_ = s.handleFault(ctx, ds, false)
	} else {
		s.mutate(func(st *podstate.PodState) { st.UpdateFromDetailedStatusResponse(ds, now(), s.cfg.NominalPodLife) })
	}
	return ds, nil
}

// SetTime cancels all delivery, then reinstalls the basal schedule under
// the new UTC offset. Both steps throw on failure; this operation's own
// idempotence rests on CancelDelivery/SetBasalSchedule being safe to
// reissue.
func (s *Session) SetTime(ctx context.Context, offset time.Duration, schedule wire.BasalSchedule, beep wire.BeepType) error {
	s.assertOnQueue()
	if _, err := s.CancelDelivery(ctx, wire.DeliveryAll, wire.NoBeep); err != nil {
		return err
	}
	_, err := s.setBasalSchedule(ctx, schedule, offset, beep)
	return err
}

// DeactivatePod ends the pod's life. If setup completed, the pod is
// unfaulted, and it is not suspended, delivery is cancelled first
// (throwing on failure). If the pod is faulted, a best-effort pulse-log
// read is attempted for postmortem logging before deactivation, and is
// never allowed to fail the call. The final deactivate send swallows a
// pod fault or an unexpected response, since the pod may self-terminate
// mid-command.
func (s *Session) DeactivatePod(ctx context.Context) error {
	s.assertOnQueue()
	state := s.state

	if state.SetupProgress == podstate.Completed && state.Fault == nil && state.SuspendState.Tag != podstate.Suspended {
		if _, err := s.CancelDelivery(ctx, wire.DeliveryAll, wire.NoBeep); err != nil {
			return err
		}
	}

	if state.Fault != nil {
		_, _ = send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoPulseLogRecent}}, false, matchPodInfo)
	}

	_, err := send(ctx, s, []wire.Block{&wire.DeactivatePodBlock{}}, false, matchAck)
	if err == nil {
		return nil
	}
	if podErr, ok := err.(*errors.PodCommsError); ok {
		if podErr.Code == errors.CodePodFault || podErr.Code == errors.CodeActivationTimeExceeded || podErr.Code == errors.CodeUnexpectedResponse {
			return nil
		}
	}
	return err
}

// AcknowledgeAlerts clears the given slots from activeAlertSlots and
// returns what remains active.
func (s *Session) AcknowledgeAlerts(ctx context.Context, alertSet wire.AlertSet) (wire.AlertSet, error) {
	s.assertOnQueue()
	status, err := send(ctx, s, []wire.Block{&wire.AcknowledgeAlertBlock{AlertsToAcknowledge: alertSet}}, false, matchStatus)
	if err != nil {
		return 0, err
	}
	var active wire.AlertSet
	s.mutate(func(st *podstate.PodState) {
		st.UpdateFromStatusResponse(*status, now(), s.cfg.NominalPodLife)
		for slot := wire.AlertSlot(0); slot < numAlertSlots; slot++ {
			if alertSet.Has(slot) {
				st.ActiveAlertSlots = st.ActiveAlertSlots.Without(slot)
			}
		}
		active = st.ActiveAlertSlots
	})
	return active, nil
}
