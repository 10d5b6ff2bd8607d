package logger

import "log/slog"

// Standard field keys shared across the pod session core so log lines
// aggregate cleanly regardless of which component emitted them.
const (
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeySessionID = "session_id"
	KeyOperation = "operation"

	KeyPodAddress   = "pod_address"
	KeyBlockType    = "block_type"
	KeySequenceNum  = "sequence_num"
	KeyNonce        = "nonce"
	KeyAttempt      = "attempt"
	KeyErrorCode    = "error_code"
	KeyFaultCode    = "fault_event_code"
	KeySetupPhase   = "setup_progress"
	KeyCertainty    = "certainty"
	KeyUnits        = "units"
	KeyRate         = "rate"
	KeyDurationMins = "duration_minutes"
	KeyDurationMs   = "duration_ms"
	KeyError        = "error"
)

func PodAddress(addr uint32) slog.Attr  { return slog.Any(KeyPodAddress, addr) }
func BlockType(t string) slog.Attr      { return slog.String(KeyBlockType, t) }
func SequenceNum(n uint8) slog.Attr     { return slog.Any(KeySequenceNum, n) }
func Nonce(n uint32) slog.Attr          { return slog.Any(KeyNonce, n) }
func Attempt(n int) slog.Attr           { return slog.Int(KeyAttempt, n) }
func FaultCode(code uint8) slog.Attr    { return slog.Any(KeyFaultCode, code) }
func SetupPhase(phase string) slog.Attr { return slog.String(KeySetupPhase, phase) }
func Certainty(c string) slog.Attr      { return slog.String(KeyCertainty, c) }
func Units(u float64) slog.Attr         { return slog.Float64(KeyUnits, u) }
func Rate(u float64) slog.Attr          { return slog.Float64(KeyRate, u) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}
