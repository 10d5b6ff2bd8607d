package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/config"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

func newTestSession(transport Transport) *Session {
	state := podstate.New(0x1f02e6a1, 43620, 0, 0, "pi1.0", "pm1.0")
	return New(transport, state, config.Defaults(), nil, nil)
}

func TestSendRetriesOnceAfterBadNonce(t *testing.T) {
	transport := &scriptedTransport{
		responses: []Message{
			{Blocks: []wire.Block{&wire.ErrorResponseBlock{Kind: wire.ErrorResponseBadNonce, SyncWord: 0x1234}}},
			{Blocks: []wire.Block{&wire.StatusResponseBlock{PodProgress: wire.PodProgressReadyForDelivery}}},
		},
	}
	s := newTestSession(transport)

	var result *wire.StatusResponseBlock
	err := s.Run(func() error {
		var err error
		result, err = send(context.Background(), s, []wire.Block{&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryNone}}, false, matchStatus)
		return err
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, wire.PodProgressReadyForDelivery, result.PodProgress)
	require.Len(t, transport.calls, 2, "expected one retry after the badNonce response")
}

func TestSendFailsAfterTwoBadNonceAttempts(t *testing.T) {
	badNonce := Message{Blocks: []wire.Block{&wire.ErrorResponseBlock{Kind: wire.ErrorResponseBadNonce, SyncWord: 0x1}}}
	transport := &scriptedTransport{responses: []Message{badNonce, badNonce}}
	s := newTestSession(transport)

	err := s.Run(func() error {
		_, err := send(context.Background(), s, []wire.Block{&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryNone}}, false, matchStatus)
		return err
	})

	require.Error(t, err)
	require.Len(t, transport.calls, 2)
}

func TestSendPropagatesPodFault(t *testing.T) {
	fault := wire.DetailedStatus{IsFaulted: true, FaultEventCode: 0x22, PodProgress: wire.PodProgressActivationTimeExceeded}
	transport := &scriptedTransport{responses: []Message{{Fault: &fault}}}
	s := newTestSession(transport)

	err := s.Run(func() error {
		_, err := send(context.Background(), s, []wire.Block{&wire.CancelDeliveryBlock{DeliveryType: wire.DeliveryNone}}, false, matchStatus)
		return err
	})

	require.Error(t, err)
	require.NotNil(t, s.State().Fault)
	require.Equal(t, uint8(0x22), s.State().Fault.FaultEventCode)
}

func TestSendSucceedsOnFirstTry(t *testing.T) {
	transport := &scriptedTransport{
		responses: []Message{{Blocks: []wire.Block{&wire.AckBlock{}}}},
	}
	s := newTestSession(transport)

	err := s.Run(func() error {
		_, err := send(context.Background(), s, []wire.Block{&wire.FaultConfigBlock{}}, false, matchAck)
		return err
	})

	require.NoError(t, err)
	require.Len(t, transport.calls, 1)
}
