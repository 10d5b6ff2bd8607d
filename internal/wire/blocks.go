package wire

import (
	"bytes"
	"fmt"
	"time"
)

// ScheduleType discriminates what SetInsulinScheduleBlock is programming.
type ScheduleType uint8

const (
	ScheduleBolus ScheduleType = iota + 1
	ScheduleTempBasal
	ScheduleBasal
)

// SetInsulinScheduleBlock programs one of a bolus, a temp basal, or a
// basal schedule. Exactly one of the type-specific fields is meaningful,
// selected by Kind.
type SetInsulinScheduleBlock struct {
	NonceValue uint32
	Kind       ScheduleType

	BolusUnits         float64
	BolusPulseInterval time.Duration

	TempBasalRate     float64
	TempBasalDuration time.Duration

	Schedule  BasalSchedule
	UTCOffset time.Duration
}

func (b *SetInsulinScheduleBlock) Type() BlockType    { return BlockSetInsulinSchedule }
func (b *SetInsulinScheduleBlock) Nonce() uint32      { return b.NonceValue }
func (b *SetInsulinScheduleBlock) SetNonce(n uint32)  { b.NonceValue = n }

func (b *SetInsulinScheduleBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, uint8(b.Kind))
	switch b.Kind {
	case ScheduleBolus:
		_ = WriteUint16(&buf, pulsesOf(b.BolusUnits))
		_ = WriteUint16(&buf, uint16(b.BolusPulseInterval/time.Second))
	case ScheduleTempBasal:
		_ = WriteUint16(&buf, pulsesOf(b.TempBasalRate))
		_ = WriteUint16(&buf, uint16(b.TempBasalDuration/time.Minute))
	case ScheduleBasal:
		for _, rate := range b.Schedule.SegmentsPerHour {
			_ = WriteUint16(&buf, pulsesOf(rate))
		}
		_ = WriteUint16(&buf, int16UTCOffset(b.UTCOffset))
	default:
		return nil, fmt.Errorf("unknown schedule kind %d", b.Kind)
	}
	return buf.Bytes(), nil
}

func decodeSetInsulinSchedule(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	kindByte, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	b := &SetInsulinScheduleBlock{NonceValue: nonce, Kind: ScheduleType(kindByte)}
	switch b.Kind {
	case ScheduleBolus:
		pulses, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		interval, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		b.BolusUnits = unitsOf(pulses)
		b.BolusPulseInterval = time.Duration(interval) * time.Second
	case ScheduleTempBasal:
		pulses, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		minutes, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		b.TempBasalRate = unitsOf(pulses)
		b.TempBasalDuration = time.Duration(minutes) * time.Minute
	case ScheduleBasal:
		for i := range b.Schedule.SegmentsPerHour {
			pulses, err := ReadUint16(r)
			if err != nil {
				return nil, err
			}
			b.Schedule.SegmentsPerHour[i] = unitsOf(pulses)
		}
		offset, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		b.UTCOffset = utcOffsetOf(offset)
	default:
		return nil, fmt.Errorf("unknown schedule kind %d", kindByte)
	}
	return b, nil
}

// pulsesOf/unitsOf convert between insulin units and 0.05U pulses, the
// pod's native delivery granularity.
const unitsPerPulse = 0.05

func pulsesOf(units float64) uint16 { return uint16(units/unitsPerPulse + 0.5) }
func unitsOf(pulses uint16) float64 { return float64(pulses) * unitsPerPulse }

func int16UTCOffset(d time.Duration) uint16 { return uint16(int16(d / time.Minute)) }
func utcOffsetOf(raw uint16) time.Duration  { return time.Duration(int16(raw)) * time.Minute }

// BolusExtraBlock accompanies SetInsulinScheduleBlock{Kind: ScheduleBolus}
// with the beep/reminder configuration for the bolus.
type BolusExtraBlock struct {
	NonceValue       uint32
	Units            float64
	Beep             BeepType
	ReminderInterval time.Duration
}

func (b *BolusExtraBlock) Type() BlockType   { return BlockBolusExtra }
func (b *BolusExtraBlock) Nonce() uint32     { return b.NonceValue }
func (b *BolusExtraBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *BolusExtraBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint16(&buf, pulsesOf(b.Units))
	_ = WriteUint8(&buf, uint8(b.Beep))
	_ = WriteUint16(&buf, uint16(b.ReminderInterval/time.Minute))
	return buf.Bytes(), nil
}

func decodeBolusExtra(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	pulses, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	beep, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	reminder, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	return &BolusExtraBlock{
		NonceValue:       nonce,
		Units:            unitsOf(pulses),
		Beep:             BeepType(beep),
		ReminderInterval: time.Duration(reminder) * time.Minute,
	}, nil
}

// TempBasalExtraBlock accompanies a temp-basal SetInsulinScheduleBlock.
type TempBasalExtraBlock struct {
	NonceValue uint32
	Rate       float64
	Duration   time.Duration
	Beep       BeepType
}

func (b *TempBasalExtraBlock) Type() BlockType   { return BlockTempBasalExtra }
func (b *TempBasalExtraBlock) Nonce() uint32     { return b.NonceValue }
func (b *TempBasalExtraBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *TempBasalExtraBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint16(&buf, pulsesOf(b.Rate))
	_ = WriteUint16(&buf, uint16(b.Duration/time.Minute))
	_ = WriteUint8(&buf, uint8(b.Beep))
	return buf.Bytes(), nil
}

func decodeTempBasalExtra(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	pulses, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	minutes, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	beep, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &TempBasalExtraBlock{
		NonceValue: nonce,
		Rate:       unitsOf(pulses),
		Duration:   time.Duration(minutes) * time.Minute,
		Beep:       BeepType(beep),
	}, nil
}

// BasalScheduleExtraBlock accompanies a basal SetInsulinScheduleBlock.
type BasalScheduleExtraBlock struct {
	NonceValue uint32
	Schedule   BasalSchedule
	UTCOffset  time.Duration
	Beep       BeepType
}

func (b *BasalScheduleExtraBlock) Type() BlockType   { return BlockBasalScheduleExtra }
func (b *BasalScheduleExtraBlock) Nonce() uint32     { return b.NonceValue }
func (b *BasalScheduleExtraBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *BasalScheduleExtraBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	for _, rate := range b.Schedule.SegmentsPerHour {
		_ = WriteUint16(&buf, pulsesOf(rate))
	}
	_ = WriteUint16(&buf, int16UTCOffset(b.UTCOffset))
	_ = WriteUint8(&buf, uint8(b.Beep))
	return buf.Bytes(), nil
}

func decodeBasalScheduleExtra(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	var sched BasalSchedule
	for i := range sched.SegmentsPerHour {
		pulses, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		sched.SegmentsPerHour[i] = unitsOf(pulses)
	}
	offset, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	beep, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &BasalScheduleExtraBlock{
		NonceValue: nonce,
		Schedule:   sched,
		UTCOffset:  utcOffsetOf(offset),
		Beep:       BeepType(beep),
	}, nil
}

// PodInfoType selects what GetStatusBlock asks the pod to report.
type PodInfoType uint8

const (
	PodInfoNormal         PodInfoType = 0x00
	PodInfoDetailedStatus PodInfoType = 0x02
	PodInfoPulseLogRecent PodInfoType = 0x50
)

// GetStatusBlock requests a status (or detailed status / pulse log)
// response. It does not carry a nonce: status polling never consumes
// one, so a lost status round trip never desyncs the nonce table.
type GetStatusBlock struct {
	Subtype PodInfoType
}

func (b *GetStatusBlock) Type() BlockType { return BlockGetStatus }

func (b *GetStatusBlock) EncodeBody() ([]byte, error) {
	return []byte{byte(b.Subtype)}, nil
}

func decodeGetStatus(body []byte) (Block, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("short GetStatus body")
	}
	return &GetStatusBlock{Subtype: PodInfoType(body[0])}, nil
}

// CancelDeliveryBlock cancels one or more delivery channels.
type CancelDeliveryBlock struct {
	NonceValue   uint32
	DeliveryType DeliveryType
	Beep         BeepType
}

func (b *CancelDeliveryBlock) Type() BlockType   { return BlockCancelDelivery }
func (b *CancelDeliveryBlock) Nonce() uint32     { return b.NonceValue }
func (b *CancelDeliveryBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *CancelDeliveryBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, uint8(b.DeliveryType))
	_ = WriteUint8(&buf, uint8(b.Beep))
	return buf.Bytes(), nil
}

func decodeCancelDelivery(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	dt, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	beep, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &CancelDeliveryBlock{NonceValue: nonce, DeliveryType: DeliveryType(dt), Beep: BeepType(beep)}, nil
}

// ConfigureAlertsBlock installs or replaces one or more alert slots.
type ConfigureAlertsBlock struct {
	NonceValue uint32
	Alerts     []PodAlert
}

func (b *ConfigureAlertsBlock) Type() BlockType   { return BlockConfigureAlerts }
func (b *ConfigureAlertsBlock) Nonce() uint32     { return b.NonceValue }
func (b *ConfigureAlertsBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *ConfigureAlertsBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, uint8(len(b.Alerts)))
	for _, a := range b.Alerts {
		_ = WriteUint8(&buf, uint8(a.Slot))
		_ = WriteUint16(&buf, uint16(a.AlertAfter/time.Minute))
		_ = WriteUint16(&buf, uint16(a.AlertDuration/time.Minute))
		flags := uint8(a.Beep)
		if a.BeepRepeat {
			flags |= 0x40
		}
		if a.Silent {
			flags |= 0x80
		}
		_ = WriteUint8(&buf, flags)
	}
	return buf.Bytes(), nil
}

func decodeConfigureAlerts(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	count, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	alerts := make([]PodAlert, 0, count)
	for range count {
		slot, err := ReadUint8(r)
		if err != nil {
			return nil, err
		}
		after, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		dur, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		flags, err := ReadUint8(r)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, PodAlert{
			Slot:          AlertSlot(slot),
			AlertAfter:    time.Duration(after) * time.Minute,
			AlertDuration: time.Duration(dur) * time.Minute,
			Beep:          BeepType(flags & 0x3f),
			BeepRepeat:    flags&0x40 != 0,
			Silent:        flags&0x80 != 0,
		})
	}
	return &ConfigureAlertsBlock{NonceValue: nonce, Alerts: alerts}, nil
}

// AcknowledgeAlertBlock clears the given alert slots from activeAlertSlots.
type AcknowledgeAlertBlock struct {
	NonceValue          uint32
	AlertsToAcknowledge AlertSet
}

func (b *AcknowledgeAlertBlock) Type() BlockType   { return BlockAcknowledgeAlert }
func (b *AcknowledgeAlertBlock) Nonce() uint32     { return b.NonceValue }
func (b *AcknowledgeAlertBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *AcknowledgeAlertBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, uint8(b.AlertsToAcknowledge))
	return buf.Bytes(), nil
}

func decodeAcknowledgeAlert(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	set, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &AcknowledgeAlertBlock{NonceValue: nonce, AlertsToAcknowledge: AlertSet(set)}, nil
}

// FaultConfigBlock toggles the pod's $6x fault family, used during
// pairing to avoid spurious faults while priming.
type FaultConfigBlock struct {
	NonceValue uint32
	Tab5Sub16  uint8
	Tab5Sub17  uint8
}

func (b *FaultConfigBlock) Type() BlockType   { return BlockFaultConfig }
func (b *FaultConfigBlock) Nonce() uint32     { return b.NonceValue }
func (b *FaultConfigBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *FaultConfigBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, b.Tab5Sub16)
	_ = WriteUint8(&buf, b.Tab5Sub17)
	return buf.Bytes(), nil
}

func decodeFaultConfig(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	sub16, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	sub17, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &FaultConfigBlock{NonceValue: nonce, Tab5Sub16: sub16, Tab5Sub17: sub17}, nil
}

// BeepConfigBlock configures a one-shot beep pattern, independent of any
// delivery command (used by host-level reminders; exposed here for wire
// completeness even though no Delivery Operation in this core issues it
// standalone today).
type BeepConfigBlock struct {
	NonceValue uint32
	Beep       BeepType
}

func (b *BeepConfigBlock) Type() BlockType   { return BlockBeepConfig }
func (b *BeepConfigBlock) Nonce() uint32     { return b.NonceValue }
func (b *BeepConfigBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *BeepConfigBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	_ = WriteUint8(&buf, uint8(b.Beep))
	return buf.Bytes(), nil
}

func decodeBeepConfig(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	beep, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	return &BeepConfigBlock{NonceValue: nonce, Beep: BeepType(beep)}, nil
}

// DeactivatePodBlock ends the pod's life permanently.
type DeactivatePodBlock struct {
	NonceValue uint32
}

func (b *DeactivatePodBlock) Type() BlockType   { return BlockDeactivatePod }
func (b *DeactivatePodBlock) Nonce() uint32     { return b.NonceValue }
func (b *DeactivatePodBlock) SetNonce(n uint32) { b.NonceValue = n }

func (b *DeactivatePodBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, b.NonceValue)
	return buf.Bytes(), nil
}

func decodeDeactivatePod(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	nonce, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	return &DeactivatePodBlock{NonceValue: nonce}, nil
}

// AckBlock is an empty acknowledgement. A command that expected a
// data-bearing response but received this instead surfaces
// errors.CodePodAckedInsteadOfReturningResponse.
type AckBlock struct{}

func (b *AckBlock) Type() BlockType            { return BlockAck }
func (b *AckBlock) EncodeBody() ([]byte, error) { return nil, nil }

func decodeAck([]byte) (Block, error) { return &AckBlock{}, nil }
