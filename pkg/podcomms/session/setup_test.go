package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/config"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

func TestPrimeFromFreshPodAdvancesToPriming(t *testing.T) {
	transport := &scriptedTransport{
		responses: []Message{
			{Blocks: []wire.Block{&wire.AckBlock{}}}, // FaultConfig
			{Blocks: []wire.Block{&wire.AckBlock{}}}, // ConfigureAlerts
			{Blocks: []wire.Block{&wire.StatusResponseBlock{PodProgress: wire.PodProgressPriming}}}, // SetInsulinSchedule+BolusExtra
		},
	}
	s := newTestSession(transport)
	cfg := config.Defaults()

	var remaining int64
	err := s.Run(func() error {
		d, err := s.Prime(context.Background(), cfg)
		remaining = int64(d)
		return err
	})

	require.NoError(t, err)
	require.Equal(t, podstate.Priming, s.State().SetupProgress)
	require.Positive(t, remaining)
	require.Len(t, transport.calls, 3)
}

func TestPrimeResumesFromStartingPrime(t *testing.T) {
	transport := &scriptedTransport{
		responses: []Message{
			{Blocks: []wire.Block{&wire.StatusResponseBlock{PodProgress: wire.PodProgressPrimingCompleted}}},
		},
	}
	s := newTestSession(transport)
	s.State().AdvanceSetupProgress(podstate.StartingPrime)
	finish := time.Now().Add(30 * time.Second)
	s.State().PrimeFinishTime = &finish

	err := s.Run(func() error {
		_, err := s.Prime(context.Background(), config.Defaults())
		return err
	})

	require.NoError(t, err)
	require.Equal(t, podstate.Priming, s.State().SetupProgress)
	require.Len(t, transport.calls, 1, "resuming from startingPrime should poll status, not reissue the bolus")
}

func TestInsertCannulaRequiresActivatedPod(t *testing.T) {
	s := newTestSession(&scriptedTransport{})
	err := s.Run(func() error {
		_, err := s.InsertCannula(context.Background(), config.Defaults())
		return err
	})
	require.ErrorIs(t, err, ErrNoPodPaired)
}

func TestCheckInsertionCompletedMarksSetupComplete(t *testing.T) {
	transport := &scriptedTransport{
		responses: []Message{
			{Blocks: []wire.Block{&wire.StatusResponseBlock{PodProgress: wire.PodProgressReadyForDelivery, TotalInsulinDelivered: 3.1}}},
		},
	}
	s := newTestSession(transport)
	s.State().AdvanceSetupProgress(podstate.CannulaInserting)

	var done bool
	err := s.Run(func() error {
		var err error
		done, err = s.CheckInsertionCompleted(context.Background())
		return err
	})

	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, podstate.Completed, s.State().SetupProgress)
	require.Equal(t, 3.1, s.State().SetupUnitsDelivered)
}
