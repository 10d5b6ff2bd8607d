package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("nonce resync", "attempt", 1, KeyPodAddress, uint32(0x1234))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["msg"] != "nonce resync" {
		t.Errorf("msg = %v, want %q", decoded["msg"], "nonce resync")
	}
	if decoded[KeyPodAddress] != float64(0x1234) {
		t.Errorf("%s = %v, want %v", KeyPodAddress, decoded[KeyPodAddress], 0x1234)
	}
}

func TestDebugSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output at INFO level, got %q", buf.String())
	}
}

func TestInfoCtxIncludesLogContext(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	lc := NewLogContext("sess-1", 0xABCD).WithOperation("bolus")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "sending bolus command")

	out := buf.String()
	if !strings.Contains(out, "session_id=sess-1") {
		t.Errorf("expected session_id in output, got %q", out)
	}
	if !strings.Contains(out, "operation=bolus") {
		t.Errorf("expected operation in output, got %q", out)
	}
}

func TestSetLevelIgnoresInvalidValue(t *testing.T) {
	SetLevel("INFO")
	SetLevel("NOT_A_LEVEL")
	if Level(currentLevel.Load()) != LevelInfo {
		t.Errorf("level changed on invalid input: %v", Level(currentLevel.Load()))
	}
}
