package session

import (
	"context"
	"errors"
)

// scriptedTransport replays a fixed sequence of responses, one per call
// to SendMessage, so tests can drive the exchange protocol without a
// real radio link.
type scriptedTransport struct {
	responses []Message
	errs      []error
	calls     []Message
	seq       uint8
}

func (t *scriptedTransport) SendMessage(_ context.Context, msg Message) (Message, error) {
	t.calls = append(t.calls, msg)
	i := len(t.calls) - 1
	if i >= len(t.responses) {
		return Message{}, errors.New("scriptedTransport: ran out of scripted responses")
	}
	var err error
	if i < len(t.errs) {
		err = t.errs[i]
	}
	return t.responses[i], err
}

func (t *scriptedTransport) MessageNumber() uint8 {
	n := t.seq
	t.seq++
	return n
}

func (t *scriptedTransport) AssertOnSessionQueue() {}
