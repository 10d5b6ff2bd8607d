package podstate

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"

	"github.com/kaylen-rios/podcomms/internal/wire"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
)

// blobVersion is bumped whenever a field is added or reshaped in a way
// that decode needs to know about.
const blobVersion = 1

// legacyFields lists keys that decode understands but no longer encodes,
// kept for forward migration of blobs written by older builds. The only
// current entry is the pre-suspendState boolean.
var legacyFields = map[string]bool{
	"suspended": true,
}

// integrityTagInfo is the fixed HKDF info parameter for the integrity
// tag. It does not include a blob version.
const integrityTagInfo = "podcomms-podstate-blob"

// Encode serializes s into the self-describing key/value blob described
// for persistence: a YAML mapping so the result stays human-inspectable
// (podcore-inspect decodes it and prints a summary), with a trailing integrity tag
// derived from the blob contents via HKDF-SHA256 so truncated or
// hand-edited blobs are caught at decode time rather than silently
// misread.
func Encode(s *PodState) ([]byte, error) {
	m := toMap(s)
	body, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("podstate: encode blob: %w", err)
	}
	tag := integrityTag(body)
	out := map[string]any{
		"version": blobVersion,
		"body":    string(body),
		"tag":     tag,
	}
	return yaml.Marshal(out)
}

// Decode parses a blob produced by Encode (or a legacy pre-suspendState
// blob) back into a PodState. now is used as the migration timestamp for
// the legacy suspended→suspendState transition: the exact original
// transition time is unrecoverable from a bare boolean, so the decode
// time stands in for it.
func Decode(data []byte, now time.Time) (*PodState, error) {
	var envelope map[string]any
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("podstate: decode blob: %w", err)
	}

	bodyStr, hasBody := envelope["body"].(string)
	var body []byte
	if hasBody {
		tag, _ := envelope["tag"].(string)
		body = []byte(bodyStr)
		if tag != integrityTag(body) {
			return nil, fmt.Errorf("podstate: decode blob: integrity tag mismatch")
		}
	} else {
		// No envelope: treat the whole document as the body map directly,
		// the shape a hand-authored or pre-versioning blob would have.
		body = data
	}

	var m map[string]any
	if err := yaml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("podstate: decode blob body: %w", err)
	}

	return fromMap(m, now)
}

func integrityTag(body []byte) string {
	r := hkdf.New(sha256.New, body, nil, []byte(integrityTagInfo))
	out := make([]byte, 16)
	_, _ = io.ReadFull(r, out)
	return fmt.Sprintf("%x", out)
}

func toMap(s *PodState) map[string]any {
	m := map[string]any{
		"address":     s.Address,
		"piVersion":   s.PIVersion,
		"pmVersion":   s.PMVersion,
		"lot":         s.Lot,
		"tid":         s.Tid,
		"nonceState":  encodeNonceState(s.NonceState),
		"activatedAt": s.ActivatedAt,
		"expiresAt":   s.ExpiresAt,

		"setupProgress": int(s.SetupProgress),
		"suspendState": map[string]any{
			"tag": int(s.SuspendState.Tag),
			"at":  s.SuspendState.At,
		},
		"activeAlertSlots":      int(s.ActiveAlertSlots),
		"messageTransportState": map[string]any{"packetNumber": s.MessageTransportState.PacketNumber, "messageNumber": s.MessageTransportState.MessageNumber},
		"setupUnitsDelivered":   s.SetupUnitsDelivered,
		"configuredAlerts":      encodeConfiguredAlerts(s.ConfiguredAlerts),
		"finalizedDoses":        encodeDoses(s.Ledger.Finalized()),
	}

	if s.Fault != nil {
		m["fault"] = map[string]any{
			"faultEventCode":    s.Fault.FaultEventCode,
			"podProgressStatus": int(s.Fault.PodProgressStatus),
			"bolusNotDelivered": s.Fault.BolusNotDelivered,
			"observedAt":        s.Fault.ObservedAt,
		}
	}
	if s.PrimeFinishTime != nil {
		m["primeFinishTime"] = *s.PrimeFinishTime
	}
	if s.LastInsulinMeasurements != nil {
		m["lastInsulinMeasurements"] = map[string]any{
			"totalInsulinDelivered": s.LastInsulinMeasurements.TotalInsulinDelivered,
			"reservoirLevel":        s.LastInsulinMeasurements.ReservoirLevel,
			"validAt":               s.LastInsulinMeasurements.ValidAt,
		}
	}
	if d := s.Ledger.Bolus(); d != nil {
		m["unfinalizedBolus"] = encodeDose(*d)
	}
	if d := s.Ledger.TempBasal(); d != nil {
		m["unfinalizedTempBasal"] = encodeDose(*d)
	}
	if d := s.Ledger.Suspend(); d != nil {
		m["unfinalizedSuspend"] = encodeDose(*d)
	}
	if d := s.Ledger.Resume(); d != nil {
		m["unfinalizedResume"] = encodeDose(*d)
	}

	return m
}

func fromMap(m map[string]any, now time.Time) (*PodState, error) {
	s := &PodState{
		ConfiguredAlerts: make(map[wire.AlertSlot]wire.PodAlert),
		Ledger:           ledger.New(),
	}

	s.Address = uint32(toInt(m["address"]))
	s.PIVersion, _ = m["piVersion"].(string)
	s.PMVersion, _ = m["pmVersion"].(string)
	s.Lot = uint32(toInt(m["lot"]))
	s.Tid = uint32(toInt(m["tid"]))
	s.NonceState = decodeNonceState(m["nonceState"], s.Lot, s.Tid)
	s.ActivatedAt = toTime(m["activatedAt"])
	s.ExpiresAt = toTime(m["expiresAt"])
	s.SetupProgress = SetupProgress(toInt(m["setupProgress"]))
	s.ActiveAlertSlots = wire.AlertSet(toInt(m["activeAlertSlots"]))
	s.SetupUnitsDelivered = toFloat(m["setupUnitsDelivered"])

	if mts, ok := m["messageTransportState"].(map[string]any); ok {
		s.MessageTransportState = MessageTransportState{
			PacketNumber:  uint8(toInt(mts["packetNumber"])),
			MessageNumber: uint8(toInt(mts["messageNumber"])),
		}
	}

	if ss, ok := m["suspendState"].(map[string]any); ok {
		s.SuspendState = SuspendState{Tag: SuspendTag(toInt(ss["tag"])), At: toTime(ss["at"])}
	} else if legacyFields["suspended"] {
		if legacySuspended, ok := m["suspended"].(bool); ok {
			tag := Resumed
			if legacySuspended {
				tag = Suspended
			}
			s.SuspendState = SuspendState{Tag: tag, At: now}
		}
	}

	if f, ok := m["fault"].(map[string]any); ok {
		s.Fault = &FaultRecord{
			FaultEventCode:    uint8(toInt(f["faultEventCode"])),
			PodProgressStatus: wire.PodProgress(toInt(f["podProgressStatus"])),
			BolusNotDelivered: toFloat(f["bolusNotDelivered"]),
			ObservedAt:        toTime(f["observedAt"]),
		}
	}
	if t, ok := m["primeFinishTime"]; ok {
		pt := toTime(t)
		s.PrimeFinishTime = &pt
	}
	if lm, ok := m["lastInsulinMeasurements"].(map[string]any); ok {
		s.LastInsulinMeasurements = &InsulinMeasurements{
			TotalInsulinDelivered: toFloat(lm["totalInsulinDelivered"]),
			ReservoirLevel:        toFloat(lm["reservoirLevel"]),
			ValidAt:               toTime(lm["validAt"]),
		}
	}

	decodeConfiguredAlerts(m["configuredAlerts"], s.ConfiguredAlerts)

	for _, d := range decodeDoses(m["finalizedDoses"]) {
		appendFinalized(s.Ledger, d)
	}
	restoreUnfinalized(s.Ledger, m)

	return s, nil
}
