// Package session drives the command/response protocol with one pod: it
// owns the serial execution queue, runs the Message Exchange, Setup
// Sequencer, Delivery Operations, and Fault Handler against a PodState,
// and notifies a delegate of every mutation.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/config"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Message is the core-visible request/response envelope a Transport
// exchanges with the pod.
type Message struct {
	Address        uint32
	SequenceNumber uint8
	ExpectFollowOn bool
	Blocks         []wire.Block
	Fault          *wire.DetailedStatus
}

// Transport is the radio-link abstraction the core consumes. Exactly one
// session may hold a given pod's transport at a time.
type Transport interface {
	// SendMessage blocks until the pod replies or the transport times
	// out. A protocol-level rejection is returned as a normal Message
	// whose first block is an ErrorResponse, or with Fault populated;
	// only link-level failures (timeout, radio error) return err != nil.
	SendMessage(ctx context.Context, msg Message) (Message, error)

	// MessageNumber returns the next sequence number to stamp on an
	// outbound message; the transport owns wraparound.
	MessageNumber() uint8

	// AssertOnSessionQueue is a debug hook a transport may use to
	// confirm it was called from the owning session's queue.
	AssertOnSessionQueue()
}

// Delegate observes every PodState mutation the session makes, in the
// order they occur.
type Delegate interface {
	PodCommsSessionDidChange(s *Session, state *podstate.PodState)
}

// Session owns the serial execution queue for one pod. All public
// operations must run on that queue; assertOnQueue asserts this.
type Session struct {
	id        string
	transport Transport
	state     *podstate.PodState
	cfg       config.SessionConfig
	delegate  Delegate
	metrics   *Metrics

	onQueueFlag atomic.Bool

	// useCancelNoneForStatus is a non-normative implementation option:
	// when set, status reads go through cancelNone instead of a plain
	// GetStatus. Default false.
	useCancelNoneForStatus bool
}

// New returns a Session bound to state and transport. cfg supplies the
// timing constants status reconciliation and setup sequencing need (pod
// lifetime, prime/cannula pulse timing). Run must be used to mark the
// goroutine executing session operations as "on the queue". Each Session
// gets a random instance id used only for log correlation and trace span
// attributes; it is never persisted with PodState.
func New(transport Transport, state *podstate.PodState, cfg config.SessionConfig, delegate Delegate, reg prometheus.Registerer) *Session {
	return &Session{
		id:        uuid.NewString(),
		transport: transport,
		state:     state,
		cfg:       cfg,
		delegate:  delegate,
		metrics:   NewMetrics(reg),
	}
}

// State returns the session's PodState. Callers must only read or mutate
// it from the session queue.
func (s *Session) State() *podstate.PodState { return s.state }

// ID returns this Session's instance id.
func (s *Session) ID() string { return s.id }

// UseCancelNoneForStatus toggles routing status reads through cancelNone
// instead of a plain status request. Defaults to false; not part of any
// normative protocol behavior.
func (s *Session) UseCancelNoneForStatus(v bool) { s.useCancelNoneForStatus = v }

// Run marks the calling goroutine as the session queue for the duration
// of fn, asserting single-threaded access to PodState and the nonce
// generator. The host-side driver is responsible for ensuring only
// one goroutine ever calls Run concurrently for a given Session.
func (s *Session) Run(fn func() error) error {
	s.onQueueFlag.Store(true)
	defer s.onQueueFlag.Store(false)
	return fn()
}

// assertOnQueue panics if called off the session queue; every public
// session operation must call this first. Violations are programmer
// errors, not runtime conditions to recover from.
func (s *Session) assertOnQueue() {
	if !s.onQueueFlag.Load() {
		panic("podcomms/session: operation invoked off the session queue")
	}
}

// mutate applies fn to the session's PodState under the session-queue
// assertion and notifies the delegate exactly once afterward. This is
// the sole path for PodState writes so the delegate sees a total order
// on state transitions.
func (s *Session) mutate(fn func(*podstate.PodState)) {
	s.assertOnQueue()
	fn(s.state)
	if s.delegate != nil {
		s.delegate.PodCommsSessionDidChange(s, s.state)
	}
}

// ErrNoPodPaired is returned by operations that require activatedAt to
// already be set.
var ErrNoPodPaired = fmt.Errorf("podcomms/session: no pod paired")

func now() time.Time { return time.Now() }
