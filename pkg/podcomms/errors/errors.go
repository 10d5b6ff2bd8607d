// Package errors defines the error taxonomy surfaced by the pod
// communication session core. Code is this package's own enum, distinct
// from Go's error interface; callers still use the standard library's
// errors.Is/As against the values here.
//
// This is a leaf package: it depends on nothing else in the module, so
// both the wire/session layers and their callers can import it without
// creating cycles.
package errors

import "fmt"

// Code identifies the kind of failure a session operation can surface.
type Code int

const (
	// CodeNoPodPaired means the operation requires an active, paired pod.
	CodeNoPodPaired Code = iota + 1
	// CodeInvalidData means the wire payload could not be parsed.
	CodeInvalidData
	// CodeEmptyResponse means the transport returned zero message blocks.
	CodeEmptyResponse
	// CodeUnknownResponseType means a block type byte had no known decoder.
	CodeUnknownResponseType
	// CodeNoResponse means the transport timed out without a reply.
	CodeNoResponse
	// CodePodAckedInsteadOfReturningResponse means the pod ack'd a command
	// where a data-bearing response block was expected.
	CodePodAckedInsteadOfReturningResponse
	// CodeUnexpectedPacketType means a packet-level framing violation.
	CodeUnexpectedPacketType
	// CodeUnexpectedResponse means the first response block's type did not
	// match what the caller requested and was not an error/fault.
	CodeUnexpectedResponse
	// CodeInvalidAddress means the response's pod address did not match
	// PodState.Address.
	CodeInvalidAddress
	// CodeUnfinalizedBolus means a guard rejected a new bolus because one
	// is already in flight.
	CodeUnfinalizedBolus
	// CodeUnfinalizedTempBasal means a guard rejected a new temp basal.
	CodeUnfinalizedTempBasal
	// CodePodSuspended means an operation that requires active delivery
	// was attempted while the pod is suspended.
	CodePodSuspended
	// CodeNonceResyncFailed means both attempts of the two-try nonce-resync
	// loop in Message Exchange were exhausted.
	CodeNonceResyncFailed
	// CodeRejectedMessage means the pod returned a nonretryable error
	// response.
	CodeRejectedMessage
	// CodePodFault means a fault-bearing response was received and the
	// first-fault record was captured (or already present).
	CodePodFault
	// CodeActivationTimeExceeded specializes CodePodFault when the captured
	// fault's PodProgressStatus is activationTimeExceeded.
	CodeActivationTimeExceeded
	// CodePodChange means pairing detected a different pod than expected.
	CodePodChange
	// CodeRSSITooLow means pairing-time signal strength was below threshold.
	CodeRSSITooLow
	// CodeRSSITooHigh means pairing-time signal strength was above threshold
	// (suspiciously close, risk of cross-talk).
	CodeRSSITooHigh
	// CodeCommsError wraps a transport-layer error.
	CodeCommsError
)

func (c Code) String() string {
	switch c {
	case CodeNoPodPaired:
		return "NoPodPaired"
	case CodeInvalidData:
		return "InvalidData"
	case CodeEmptyResponse:
		return "EmptyResponse"
	case CodeUnknownResponseType:
		return "UnknownResponseType"
	case CodeNoResponse:
		return "NoResponse"
	case CodePodAckedInsteadOfReturningResponse:
		return "PodAckedInsteadOfReturningResponse"
	case CodeUnexpectedPacketType:
		return "UnexpectedPacketType"
	case CodeUnexpectedResponse:
		return "UnexpectedResponse"
	case CodeInvalidAddress:
		return "InvalidAddress"
	case CodeUnfinalizedBolus:
		return "UnfinalizedBolus"
	case CodeUnfinalizedTempBasal:
		return "UnfinalizedTempBasal"
	case CodePodSuspended:
		return "PodSuspended"
	case CodeNonceResyncFailed:
		return "NonceResyncFailed"
	case CodeRejectedMessage:
		return "RejectedMessage"
	case CodePodFault:
		return "PodFault"
	case CodeActivationTimeExceeded:
		return "ActivationTimeExceeded"
	case CodePodChange:
		return "PodChange"
	case CodeRSSITooLow:
		return "RSSITooLow"
	case CodeRSSITooHigh:
		return "RSSITooHigh"
	case CodeCommsError:
		return "CommsError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// PodCommsError is the base error type for the core. The session package
// constructs its errors with New and Wrap, so a caller that only cares
// about the code can use errors.As with *PodCommsError. The typed
// payload errors below are separate structs that expose Code(); they do
// not embed PodCommsError and do not match *PodCommsError.
type PodCommsError struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *PodCommsError {
	return &PodCommsError{Code: code, Message: message}
}

func Wrap(code Code, cause error) *PodCommsError {
	return &PodCommsError{Code: code, Message: cause.Error(), Cause: cause}
}

func (e *PodCommsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PodCommsError) Unwrap() error { return e.Cause }

// InvalidAddressError means the response's address did not match the
// pod this session is bound to.
type InvalidAddressError struct {
	Got, Expected uint32
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("%s: got address 0x%08x, expected 0x%08x", CodeInvalidAddress, e.Got, e.Expected)
}

func (e *InvalidAddressError) Code() Code { return CodeInvalidAddress }

// RejectedMessageError means the pod rejected a command as nonretryable.
type RejectedMessageError struct {
	ErrorCode uint8
}

func (e *RejectedMessageError) Error() string {
	return fmt.Sprintf("%s: pod rejected command with error code 0x%02x", CodeRejectedMessage, e.ErrorCode)
}

func (e *RejectedMessageError) Code() Code { return CodeRejectedMessage }

// FaultInfo is the subset of a pod's detailed status that the error
// taxonomy needs to carry. It deliberately does not depend on the wire
// or podstate packages' richer DetailedStatus type, keeping this package
// a leaf. PodFaultError and ActivationTimeExceededError carry it.
type FaultInfo struct {
	FaultEventCode    uint8
	PodProgressStatus uint8
	BolusNotDelivered float64
}

// PodFaultError means the session observed (or already held) a fault.
type PodFaultError struct {
	Fault FaultInfo
}

func (e *PodFaultError) Error() string {
	return fmt.Sprintf("%s: pod fault event 0x%02x", CodePodFault, e.Fault.FaultEventCode)
}

func (e *PodFaultError) Code() Code { return CodePodFault }

// ActivationTimeExceededError specializes PodFaultError when the fault's
// progress status is the activation-timeout sentinel.
type ActivationTimeExceededError struct {
	Fault FaultInfo
}

func (e *ActivationTimeExceededError) Error() string {
	return fmt.Sprintf("%s: pod did not complete activation in time", CodeActivationTimeExceeded)
}

func (e *ActivationTimeExceededError) Code() Code { return CodeActivationTimeExceeded }

// UnexpectedResponseError means the first response block's type was
// neither the requested type, an ErrorResponse, nor a fault.
type UnexpectedResponseError struct {
	BlockType string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s: block type %q", CodeUnexpectedResponse, e.BlockType)
}

func (e *UnexpectedResponseError) Code() Code { return CodeUnexpectedResponse }

// CommsError wraps a transport-level failure.
type CommsError struct {
	Cause error
}

func (e *CommsError) Error() string {
	return fmt.Sprintf("%s: %s", CodeCommsError, e.Cause.Error())
}

func (e *CommsError) Unwrap() error { return e.Cause }
func (e *CommsError) Code() Code    { return CodeCommsError }
