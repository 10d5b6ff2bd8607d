package wire

import (
	"bytes"
	"fmt"
)

// BlockType is the single byte identifying a MessageBlock's wire shape.
type BlockType uint8

const (
	BlockConfigureAlerts    BlockType = 0x01
	BlockStatusResponse     BlockType = 0x02
	BlockSetInsulinSchedule BlockType = 0x03
	BlockBolusExtra         BlockType = 0x04
	BlockTempBasalExtra     BlockType = 0x05
	BlockBasalScheduleExtra BlockType = 0x06
	BlockGetStatus          BlockType = 0x07
	BlockCancelDelivery     BlockType = 0x08
	BlockAcknowledgeAlert   BlockType = 0x09
	BlockFaultConfig        BlockType = 0x0A
	BlockBeepConfig         BlockType = 0x0B
	BlockDeactivatePod      BlockType = 0x0C
	BlockPodInfoResponse    BlockType = 0x0D
	BlockErrorResponse      BlockType = 0x0E
	BlockAck                BlockType = 0x0F
)

func (t BlockType) String() string {
	switch t {
	case BlockConfigureAlerts:
		return "ConfigureAlerts"
	case BlockStatusResponse:
		return "StatusResponse"
	case BlockSetInsulinSchedule:
		return "SetInsulinSchedule"
	case BlockBolusExtra:
		return "BolusExtra"
	case BlockTempBasalExtra:
		return "TempBasalExtra"
	case BlockBasalScheduleExtra:
		return "BasalScheduleExtra"
	case BlockGetStatus:
		return "GetStatus"
	case BlockCancelDelivery:
		return "CancelDelivery"
	case BlockAcknowledgeAlert:
		return "AcknowledgeAlert"
	case BlockFaultConfig:
		return "FaultConfig"
	case BlockBeepConfig:
		return "BeepConfig"
	case BlockDeactivatePod:
		return "DeactivatePod"
	case BlockPodInfoResponse:
		return "PodInfoResponse"
	case BlockErrorResponse:
		return "ErrorResponse"
	case BlockAck:
		return "Ack"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
	}
}

// Block is any typed message block, command or response.
type Block interface {
	Type() BlockType
	EncodeBody() ([]byte, error)
}

// NonceBlock is implemented by command blocks that carry a nonce
// immediately after their body header. Message Exchange uses this
// interface, rather than downcasting to each concrete type, to advance
// the nonce before send and to rewrite it in place after a badNonce
// resync.
type NonceBlock interface {
	Block
	Nonce() uint32
	SetNonce(uint32)
}

// EncodeBlock writes a block's TLV envelope: type, 1-byte body length,
// body.
func EncodeBlock(b Block) ([]byte, error) {
	body, err := b.EncodeBody()
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", b.Type(), err)
	}
	if len(body) > 0xff {
		return nil, fmt.Errorf("encode %s body: %d bytes exceeds block length limit", b.Type(), len(body))
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(b.Type()))
	buf.WriteByte(byte(len(body)))
	buf.Write(body)
	return buf.Bytes(), nil
}

// blockDecoder decodes a block body of known length into a concrete Block.
type blockDecoder func(body []byte) (Block, error)

var blockDecoders = map[BlockType]blockDecoder{
	BlockConfigureAlerts:    decodeConfigureAlerts,
	BlockStatusResponse:     decodeStatusResponse,
	BlockSetInsulinSchedule: decodeSetInsulinSchedule,
	BlockBolusExtra:         decodeBolusExtra,
	BlockTempBasalExtra:     decodeTempBasalExtra,
	BlockBasalScheduleExtra: decodeBasalScheduleExtra,
	BlockGetStatus:          decodeGetStatus,
	BlockCancelDelivery:     decodeCancelDelivery,
	BlockAcknowledgeAlert:   decodeAcknowledgeAlert,
	BlockFaultConfig:        decodeFaultConfig,
	BlockBeepConfig:         decodeBeepConfig,
	BlockDeactivatePod:      decodeDeactivatePod,
	BlockPodInfoResponse:    decodePodInfoResponse,
	BlockErrorResponse:      decodeErrorResponse,
	BlockAck:                decodeAck,
}

// DecodeBlock reads one TLV block from the front of data and returns the
// decoded Block plus the number of bytes consumed.
func DecodeBlock(data []byte) (Block, int, error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("short block header: %d bytes", len(data))
	}
	blockType := BlockType(data[0])
	length := int(data[1])
	if len(data) < 2+length {
		return nil, 0, fmt.Errorf("short block body for %s: want %d, have %d", blockType, length, len(data)-2)
	}
	body := data[2 : 2+length]
	decode, ok := blockDecoders[blockType]
	if !ok {
		return nil, 0, fmt.Errorf("%s: no decoder registered", blockType)
	}
	block, err := decode(body)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", blockType, err)
	}
	return block, 2 + length, nil
}
