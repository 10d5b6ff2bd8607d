package podstate

import (
	"time"

	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/nonce"
	"github.com/kaylen-rios/podcomms/internal/wire"
)

// toInt, toFloat, and toTime tolerate the value shapes yaml.v3 produces
// for a round-tripped map[string]any (ints decode as int, floats as
// float64, RFC3339 timestamps as strings, which toTime parses) without
// requiring callers to type-assert at every call site.
func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case uint8:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func encodeNonceState(g *nonce.Generator) map[string]any {
	if g == nil {
		return nil
	}
	table, idx := g.Snapshot()
	raw := make([]uint32, len(table))
	copy(raw, table)
	return map[string]any{"table": raw, "idx": idx}
}

func decodeNonceState(v any, lot, tid uint32) *nonce.Generator {
	m, ok := v.(map[string]any)
	if !ok {
		return nonce.New(lot, tid, 0)
	}
	rawTable, _ := m["table"].([]any)
	table := make([]uint32, len(rawTable))
	for i, x := range rawTable {
		table[i] = uint32(toInt(x))
	}
	idx := uint8(toInt(m["idx"]))
	return nonce.Restore(lot, tid, table, idx)
}

func encodeConfiguredAlerts(alerts map[wire.AlertSlot]wire.PodAlert) map[string]any {
	out := make(map[string]any, len(alerts))
	for slot, alert := range alerts {
		out[formatSlot(slot)] = map[string]any{
			"alertAfter":    int64(alert.AlertAfter),
			"alertDuration": int64(alert.AlertDuration),
			"beep":          int(alert.Beep),
			"beepRepeat":    alert.BeepRepeat,
			"silent":        alert.Silent,
		}
	}
	return out
}

func decodeConfiguredAlerts(v any, into map[wire.AlertSlot]wire.PodAlert) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	for key, raw := range m {
		slot, ok := parseSlot(key)
		if !ok {
			continue
		}
		a, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		into[slot] = wire.PodAlert{
			Slot:          slot,
			AlertAfter:    time.Duration(toInt(a["alertAfter"])),
			AlertDuration: time.Duration(toInt(a["alertDuration"])),
			Beep:          wire.BeepType(toInt(a["beep"])),
			BeepRepeat:    boolOf(a["beepRepeat"]),
			Silent:        boolOf(a["silent"]),
		}
	}
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func formatSlot(slot wire.AlertSlot) string {
	return string(rune('0' + slot))
}

func parseSlot(key string) (wire.AlertSlot, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	return wire.AlertSlot(key[0] - '0'), true
}

func encodeDose(d ledger.UnfinalizedDose) map[string]any {
	m := map[string]any{
		"kind":      int(d.Kind),
		"startTime": d.StartTime,
		"amount":    d.Amount,
		"duration":  int64(d.Duration),
		"certainty": int(d.Certainty),
	}
	if d.FinishTime != nil {
		m["finishTime"] = *d.FinishTime
	}
	if d.CancelledAt != nil {
		m["cancelledAt"] = *d.CancelledAt
	}
	if d.UnitsNotDelivered != nil {
		m["unitsNotDelivered"] = *d.UnitsNotDelivered
	}
	return m
}

func decodeDose(v any) (ledger.UnfinalizedDose, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ledger.UnfinalizedDose{}, false
	}
	d := ledger.UnfinalizedDose{
		Kind:      ledger.Kind(toInt(m["kind"])),
		StartTime: toTime(m["startTime"]),
		Amount:    toFloat(m["amount"]),
		Duration:  time.Duration(toInt(m["duration"])),
		Certainty: ledger.Certainty(toInt(m["certainty"])),
	}
	if t, ok := m["finishTime"]; ok {
		ft := toTime(t)
		d.FinishTime = &ft
	}
	if t, ok := m["cancelledAt"]; ok {
		ca := toTime(t)
		d.CancelledAt = &ca
	}
	if u, ok := m["unitsNotDelivered"]; ok {
		units := toFloat(u)
		d.UnitsNotDelivered = &units
	}
	return d, true
}

func encodeDoses(doses []ledger.UnfinalizedDose) []map[string]any {
	out := make([]map[string]any, len(doses))
	for i, d := range doses {
		out[i] = encodeDose(d)
	}
	return out
}

func decodeDoses(v any) []ledger.UnfinalizedDose {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ledger.UnfinalizedDose, 0, len(raw))
	for _, item := range raw {
		if d, ok := decodeDose(item); ok {
			out = append(out, d)
		}
	}
	return out
}

func appendFinalized(l *ledger.Ledger, d ledger.UnfinalizedDose) {
	l.RestoreFinalized(append(l.Finalized(), d))
}

func restoreUnfinalized(l *ledger.Ledger, m map[string]any) {
	for _, key := range []string{"unfinalizedBolus", "unfinalizedTempBasal", "unfinalizedSuspend", "unfinalizedResume"} {
		if raw, ok := m[key]; ok {
			if d, ok := decodeDose(raw); ok {
				l.RestoreSlot(d)
			}
		}
	}
}
