package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/errors"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
)

func TestHandleFaultCapturesFirstFaultOnly(t *testing.T) {
	s := newTestSession(&scriptedTransport{})

	var err error
	_ = s.Run(func() error {
		err = s.handleFault(context.Background(), wire.DetailedStatus{FaultEventCode: 0x0a}, true)
		return nil
	})
	require.Error(t, err)
	require.NotNil(t, s.State().Fault)
	require.Equal(t, uint8(0x0a), s.State().Fault.FaultEventCode)

	_ = s.Run(func() error {
		return s.handleFault(context.Background(), wire.DetailedStatus{FaultEventCode: 0x0b}, true)
	})
	require.Equal(t, uint8(0x0a), s.State().Fault.FaultEventCode, "a later fault must never replace the first one captured")
}

func TestHandleFaultActivationTimeExceededUsesDedicatedCode(t *testing.T) {
	s := newTestSession(&scriptedTransport{})

	var err error
	_ = s.Run(func() error {
		err = s.handleFault(context.Background(), wire.DetailedStatus{PodProgress: wire.PodProgressActivationTimeExceeded}, true)
		return nil
	})

	require.Error(t, err)
	podErr, ok := err.(*errors.PodCommsError)
	require.True(t, ok)
	require.Equal(t, errors.CodeActivationTimeExceeded, podErr.Code)
}

func TestHandleFaultDoesNotThrowWhenToldNotTo(t *testing.T) {
	s := newTestSession(&scriptedTransport{})

	var err error
	_ = s.Run(func() error {
		err = s.handleFault(context.Background(), wire.DetailedStatus{FaultEventCode: 0x01}, false)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, s.State().Fault)
}

func TestHandleFaultFinalizesInFlightBolus(t *testing.T) {
	s := newTestSession(&scriptedTransport{})
	s.State().Ledger.RestoreSlot(ledger.UnfinalizedDose{Kind: ledger.KindBolus, Amount: 2, StartTime: time.Now().Add(-time.Minute), Certainty: ledger.Certain})

	_ = s.Run(func() error {
		return s.handleFault(context.Background(), wire.DetailedStatus{FaultEventCode: 0x02, BolusNotDelivered: 0.5}, false)
	})

	require.Nil(t, s.State().Ledger.Bolus(), "a faulted bolus must be finalized out of the live slot")
	finalized := s.State().Ledger.Finalized()
	require.Len(t, finalized, 1)
	require.NotNil(t, finalized[0].UnitsNotDelivered)
	require.Equal(t, 0.5, *finalized[0].UnitsNotDelivered)
}

func TestHandleCancelDosingFinalizesOnlyMatchingChannels(t *testing.T) {
	l := ledger.New()
	l.RestoreSlot(ledger.UnfinalizedDose{Kind: ledger.KindBolus, Amount: 1, StartTime: time.Now().Add(-time.Minute), Certainty: ledger.Certain})
	l.RestoreSlot(ledger.UnfinalizedDose{Kind: ledger.KindTempBasal, StartTime: time.Now().Add(-time.Minute), Duration: time.Hour, Certainty: ledger.Certain})

	handleCancelDosing(l, wire.DeliveryBolus, 0.2, time.Now())

	require.Nil(t, l.Bolus())
	require.NotNil(t, l.TempBasal(), "cancelling only the bolus channel must leave temp basal untouched")
}
