package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaylen-rios/podcomms/internal/logger"
	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/errors"
)

var tracer = otel.Tracer("github.com/kaylen-rios/podcomms/pkg/podcomms/session")

// send is the sole entry point for pod I/O. It advances the nonce
// on every nonce-bearing block, retries once on a badNonce response, and
// returns the first response block asserted as type T via match.
func send[T wire.Block](ctx context.Context, s *Session, blocks []wire.Block, expectFollowOn bool, match func(wire.Block) (T, bool)) (T, error) {
	s.assertOnQueue()
	var zero T

	ctx, span := tracer.Start(ctx, "podcomms.session.send",
		trace.WithAttributes(attribute.String("podcomms.session_id", s.id)))
	defer span.End()

	for _, b := range blocks {
		if nb, ok := b.(wire.NonceBlock); ok {
			s.state.NonceState.AdvanceToNextNonce()
			nb.SetNonce(s.state.NonceState.CurrentNonce())
		}
	}

	const maxAttempts = 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sentNonce := firstNonce(blocks)
		seq := s.transport.MessageNumber()

		msg := Message{
			Address:        s.state.Address,
			SequenceNumber: seq,
			ExpectFollowOn: expectFollowOn,
			Blocks:         blocks,
		}

		logger.DebugCtx(ctx, "sending message", logger.PodAddress(s.state.Address), logger.SequenceNum(seq), logger.Attempt(attempt+1))
		s.metrics.recordAttempt()

		resp, err := s.transport.SendMessage(ctx, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.recordCommsError()
			return zero, errors.Wrap(errors.CodeCommsError, err)
		}

		if resp.Fault != nil {
			return zero, s.handleFault(ctx, *resp.Fault, true)
		}

		if len(resp.Blocks) == 0 {
			return zero, errors.New(errors.CodeEmptyResponse, "empty response")
		}

		if matched, ok := match(resp.Blocks[0]); ok {
			return matched, nil
		}

		if _, isAck := resp.Blocks[0].(*wire.AckBlock); isAck {
			return zero, errors.New(errors.CodePodAckedInsteadOfReturningResponse, "pod acked instead of returning response")
		}

		if errResp, ok := resp.Blocks[0].(*wire.ErrorResponseBlock); ok {
			switch errResp.Kind {
			case wire.ErrorResponseBadNonce:
				s.metrics.recordBadNonce()
				s.state.NonceState.Resync(errResp.SyncWord, sentNonce, seq)
				for _, b := range blocks {
					if nb, ok := b.(wire.NonceBlock); ok {
						nb.SetNonce(s.state.NonceState.CurrentNonce())
					}
				}
				s.state.NonceState.AdvanceToNextNonce()
				continue
			case wire.ErrorResponseNonretryable:
				return zero, errors.New(errors.CodeRejectedMessage, fmt.Sprintf("rejected: code %d", errResp.ErrorCode))
			}
		}

		return zero, errors.New(errors.CodeUnexpectedResponse, resp.Blocks[0].Type().String())
	}

	s.metrics.recordNonceResyncFailed()
	return zero, errors.New(errors.CodeNonceResyncFailed, "two attempts exhausted")
}

func firstNonce(blocks []wire.Block) uint32 {
	for _, b := range blocks {
		if nb, ok := b.(wire.NonceBlock); ok {
			return nb.Nonce()
		}
	}
	return 0
}

