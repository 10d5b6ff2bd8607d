package session

import (
	"context"
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/config"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

// Alert slots used by the setup sequence. The wire format only carries a
// raw slot number (0-7); which slot means what is a controller-side
// convention, fixed here so prime/insertCannula/checkInsertionCompleted
// agree on where to look.
const (
	slotFinishSetupReminder  wire.AlertSlot = 7
	slotExpirationAdvisory   wire.AlertSlot = 0
	slotEndOfServiceImminent wire.AlertSlot = 1
)

func matchStatus(b wire.Block) (*wire.StatusResponseBlock, bool) {
	v, ok := b.(*wire.StatusResponseBlock)
	return v, ok
}

func matchAck(b wire.Block) (*wire.AckBlock, bool) {
	v, ok := b.(*wire.AckBlock)
	return v, ok
}

// Prime begins (or resumes) pod priming and returns the estimated time
// remaining until it finishes.
func (s *Session) Prime(ctx context.Context, cfg config.SessionConfig) (time.Duration, error) {
	s.assertOnQueue()
	progress := s.state.SetupProgress

	if progress < podstate.StartingPrime {
		if _, err := send(ctx, s, []wire.Block{&wire.FaultConfigBlock{Tab5Sub16: 0, Tab5Sub17: 0}}, false, matchAck); err != nil {
			return 0, err
		}
		alerts := &wire.ConfigureAlertsBlock{Alerts: []wire.PodAlert{{Slot: slotFinishSetupReminder, AlertAfter: cfg.PrimeDuration()}}}
		if _, err := send(ctx, s, []wire.Block{alerts}, false, matchAck); err != nil {
			return 0, err
		}
	}

	if progress == podstate.StartingPrime {
		status, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
		if err != nil {
			return 0, err
		}
		if status.PodProgress == wire.PodProgressPriming || status.PodProgress == wire.PodProgressPrimingCompleted {
			s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.Priming) })
			if s.state.PrimeFinishTime != nil {
				return time.Until(*s.state.PrimeFinishTime), nil
			}
			return 0, nil
		}
	}

	finish := now().Add(cfg.PrimeDuration())
	s.mutate(func(st *podstate.PodState) {
		st.PrimeFinishTime = &finish
		st.AdvanceSetupProgress(podstate.StartingPrime)
	})

	schedule := &wire.SetInsulinScheduleBlock{Kind: wire.ScheduleBolus, BolusUnits: cfg.PrimeUnits, BolusPulseInterval: cfg.SecondsPerPrimePulse}
	extra := &wire.BolusExtraBlock{Units: cfg.PrimeUnits}
	if _, err := send(ctx, s, []wire.Block{schedule, extra}, false, matchStatus); err != nil {
		return 0, err
	}

	s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.Priming) })
	return cfg.PrimeDuration(), nil
}

// ProgramInitialBasalSchedule installs the pairing-time basal schedule.
// Idempotent: if a prior attempt left progress at
// SettingInitialBasalSchedule, it polls status first and skips the send
// if the pod already reports the schedule installed.
func (s *Session) ProgramInitialBasalSchedule(ctx context.Context, schedule wire.BasalSchedule, offset time.Duration) error {
	s.assertOnQueue()

	if s.state.SetupProgress == podstate.SettingInitialBasalSchedule {
		status, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
		if err != nil {
			return err
		}
		if status.PodProgress == wire.PodProgressBasalInitialized {
			s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.InitialBasalScheduleSet) })
			return nil
		}
	}

	s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.SettingInitialBasalSchedule) })

	if _, err := s.setBasalSchedule(ctx, schedule, offset, wire.NoBeep); err != nil {
		return err
	}

	s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.InitialBasalScheduleSet) })
	return nil
}

// InsertCannula begins (or resumes) cannula insertion and returns the
// estimated time remaining. Requires a pod already marked active.
func (s *Session) InsertCannula(ctx context.Context, cfg config.SessionConfig) (time.Duration, error) {
	s.assertOnQueue()
	if s.state.ActivatedAt.IsZero() {
		return 0, ErrNoPodPaired
	}

	progress := s.state.SetupProgress
	if progress == podstate.StartingInsertCannula || progress == podstate.CannulaInserting {
		status, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
		if err != nil {
			return 0, err
		}
		switch status.PodProgress {
		case wire.PodProgressReadyForDelivery:
			s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.Completed) })
			return 0, nil
		case wire.PodProgressInsertingCannula:
			return cfg.CannulaInsertionDuration(), nil
		}
	}

	expirationAt := s.state.ActivatedAt.Add(cfg.NominalPodLife)
	shutdownAt := s.state.ActivatedAt.Add(cfg.ServiceDuration - cfg.EndOfServiceImminentWindow)
	alerts := &wire.ConfigureAlertsBlock{Alerts: []wire.PodAlert{
		{Slot: slotExpirationAdvisory, AlertAfter: time.Until(expirationAt)},
		{Slot: slotEndOfServiceImminent, AlertAfter: time.Until(shutdownAt)},
	}}
	if _, err := send(ctx, s, []wire.Block{alerts}, false, matchAck); err != nil {
		return 0, err
	}

	s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.StartingInsertCannula) })

	schedule := &wire.SetInsulinScheduleBlock{Kind: wire.ScheduleBolus, BolusUnits: cfg.CannulaInsertionUnits, BolusPulseInterval: time.Second}
	extra := &wire.BolusExtraBlock{Units: cfg.CannulaInsertionUnits}
	if _, err := send(ctx, s, []wire.Block{schedule, extra}, false, matchStatus); err != nil {
		return 0, err
	}

	s.mutate(func(st *podstate.PodState) { st.AdvanceSetupProgress(podstate.CannulaInserting) })
	return cfg.CannulaInsertionDuration(), nil
}

// CheckInsertionCompleted polls status and, if the pod reports ready for
// delivery, marks setup complete and stashes the delivered-units
// baseline used by future insulin-on-board accounting.
func (s *Session) CheckInsertionCompleted(ctx context.Context) (bool, error) {
	s.assertOnQueue()
	status, err := send(ctx, s, []wire.Block{&wire.GetStatusBlock{Subtype: wire.PodInfoNormal}}, false, matchStatus)
	if err != nil {
		return false, err
	}
	if status.PodProgress != wire.PodProgressReadyForDelivery {
		return false, nil
	}
	s.mutate(func(st *podstate.PodState) {
		st.AdvanceSetupProgress(podstate.Completed)
		st.SetupUnitsDelivered = status.TotalInsulinDelivered
	})
	return true, nil
}
