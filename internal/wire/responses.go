package wire

import (
	"bytes"
	"fmt"
	"time"
)

// StatusResponseBlock is the pod's short status report, returned for most
// commands and for a plain GetStatus(normal) poll.
type StatusResponseBlock struct {
	DeliveryStatus        DeliveryStatus
	PodProgress           PodProgress
	TotalInsulinDelivered float64
	ReservoirLevel        float64
	TimeActive            time.Duration
	SequenceNumber        uint8
	BolusNotDelivered     float64
}

func (b *StatusResponseBlock) Type() BlockType { return BlockStatusResponse }

func (b *StatusResponseBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	_ = WriteUint8(&buf, encodeDeliveryStatus(b.DeliveryStatus, b.PodProgress))
	_ = WriteUint16(&buf, pulsesOf(b.TotalInsulinDelivered))
	_ = WriteUint16(&buf, uint16(b.ReservoirLevel/unitsPerPulse))
	_ = WriteUint16(&buf, uint16(b.TimeActive/time.Minute))
	_ = WriteUint8(&buf, b.SequenceNumber)
	_ = WriteUint16(&buf, pulsesOf(b.BolusNotDelivered))
	return buf.Bytes(), nil
}

func decodeStatusResponse(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	statusByte, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	delivered, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	reservoir, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	active, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	seq, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	notDelivered, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	ds, progress := decodeDeliveryStatus(statusByte)
	return &StatusResponseBlock{
		DeliveryStatus:        ds,
		PodProgress:           progress,
		TotalInsulinDelivered: unitsOf(delivered),
		ReservoirLevel:        float64(reservoir) * unitsPerPulse,
		TimeActive:            time.Duration(active) * time.Minute,
		SequenceNumber:        seq,
		BolusNotDelivered:     unitsOf(notDelivered),
	}, nil
}

func encodeDeliveryStatus(ds DeliveryStatus, progress PodProgress) uint8 {
	var b uint8
	if ds.Bolusing {
		b |= 0x01
	}
	if ds.TempBasalRunning {
		b |= 0x02
	}
	if ds.Suspended {
		b |= 0x04
	}
	if ds.Priming {
		b |= 0x08
	}
	if ds.CannulaInserting {
		b |= 0x10
	}
	return b | (uint8(progress) << 5)
}

func decodeDeliveryStatus(raw uint8) (DeliveryStatus, PodProgress) {
	return DeliveryStatus{
		Bolusing:         raw&0x01 != 0,
		TempBasalRunning: raw&0x02 != 0,
		Suspended:        raw&0x04 != 0,
		Priming:          raw&0x08 != 0,
		CannulaInserting: raw&0x10 != 0,
	}, PodProgress(raw >> 5)
}

// PodInfoResponseBlock wraps a DetailedStatus report, returned for
// GetStatus(detailedStatus) and embedded alongside fault conditions.
type PodInfoResponseBlock struct {
	Status DetailedStatus
}

func (b *PodInfoResponseBlock) Type() BlockType { return BlockPodInfoResponse }

func (b *PodInfoResponseBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	faulted := uint8(0)
	if b.Status.IsFaulted {
		faulted = 1
	}
	_ = WriteUint8(&buf, faulted)
	_ = WriteUint8(&buf, b.Status.FaultEventCode)
	_ = WriteUint16(&buf, pulsesOf(b.Status.BolusNotDelivered))
	_ = WriteUint8(&buf, encodeDeliveryStatus(b.Status.DeliveryStatus, b.Status.PodProgress))
	_ = WriteUint16(&buf, pulsesOf(b.Status.TotalInsulinDelivered))
	_ = WriteUint16(&buf, uint16(b.Status.ReservoirLevel/unitsPerPulse))
	_ = WriteUint16(&buf, uint16(b.Status.TimeActive/time.Minute))
	_ = WriteUint8(&buf, uint8(b.Status.UnacknowledgedAlerts))
	return buf.Bytes(), nil
}

func decodePodInfoResponse(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	faultedByte, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	faultCode, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	notDelivered, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	statusByte, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	delivered, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	reservoir, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	active, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	alerts, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	ds, progress := decodeDeliveryStatus(statusByte)
	return &PodInfoResponseBlock{Status: DetailedStatus{
		IsFaulted:             faultedByte != 0,
		FaultEventCode:        faultCode,
		BolusNotDelivered:     unitsOf(notDelivered),
		PodProgress:           progress,
		DeliveryStatus:        ds,
		TotalInsulinDelivered: unitsOf(delivered),
		ReservoirLevel:        float64(reservoir) * unitsPerPulse,
		TimeActive:            time.Duration(active) * time.Minute,
		UnacknowledgedAlerts:  AlertSet(alerts),
	}}, nil
}

// ErrorResponseKind discriminates the two shapes an ErrorResponseBlock can
// take: a nonce mismatch the caller can resync and retry, or a rejection
// the caller must not retry as-is.
type ErrorResponseKind uint8

const (
	ErrorResponseBadNonce ErrorResponseKind = iota
	ErrorResponseNonretryable
)

// ErrorResponseBlock is the pod's rejection of a command. BadNonce carries
// the 16-bit sync word used to reseed the nonce generator. Nonretryable
// carries the pod's own error code, which the caller should surface and
// not simply retry.
type ErrorResponseBlock struct {
	Kind      ErrorResponseKind
	SyncWord  uint16
	ErrorCode uint8
}

func (b *ErrorResponseBlock) Type() BlockType { return BlockErrorResponse }

func (b *ErrorResponseBlock) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	switch b.Kind {
	case ErrorResponseBadNonce:
		_ = WriteUint8(&buf, 0x01)
		_ = WriteUint16(&buf, b.SyncWord)
	case ErrorResponseNonretryable:
		_ = WriteUint8(&buf, 0x02)
		_ = WriteUint8(&buf, b.ErrorCode)
	default:
		return nil, fmt.Errorf("unknown error response kind %d", b.Kind)
	}
	return buf.Bytes(), nil
}

func decodeErrorResponse(body []byte) (Block, error) {
	r := bytes.NewReader(body)
	kindByte, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	switch kindByte {
	case 0x01:
		syncWord, err := ReadUint16(r)
		if err != nil {
			return nil, err
		}
		return &ErrorResponseBlock{Kind: ErrorResponseBadNonce, SyncWord: syncWord}, nil
	case 0x02:
		code, err := ReadUint8(r)
		if err != nil {
			return nil, err
		}
		return &ErrorResponseBlock{Kind: ErrorResponseNonretryable, ErrorCode: code}, nil
	default:
		return nil, fmt.Errorf("unknown error response discriminator 0x%02x", kindByte)
	}
}
