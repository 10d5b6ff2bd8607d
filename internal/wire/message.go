package wire

import (
	"bytes"
	"fmt"
)

const (
	flagMoreFragments = 0x40
	seqMask           = 0x0f
)

// Message is one on-air frame: an address, the blocks it carries, and the
// trailing CRC16 that covers everything before it. Wire shape:
//
//	address(u32 BE) || seqAndFlags(u8) || length(u8) || blocks... || crc16(u16 BE)
type Message struct {
	Address        uint32
	SequenceNumber uint8
	MoreFragments  bool
	Blocks         []Block
}

// EncodeMessage serializes m, computing and appending its CRC16.
func EncodeMessage(m Message) ([]byte, error) {
	var body bytes.Buffer
	for _, b := range m.Blocks {
		encoded, err := EncodeBlock(b)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		body.Write(encoded)
	}
	if body.Len() > 0xff {
		return nil, fmt.Errorf("encode message: body %d bytes exceeds frame length limit", body.Len())
	}

	var buf bytes.Buffer
	_ = WriteUint32(&buf, m.Address)
	seqAndFlags := m.SequenceNumber & seqMask
	if m.MoreFragments {
		seqAndFlags |= flagMoreFragments
	}
	_ = WriteUint8(&buf, seqAndFlags)
	_ = WriteUint8(&buf, uint8(body.Len()))
	buf.Write(body.Bytes())

	crc := CRC16(buf.Bytes())
	_ = WriteUint16(&buf, crc)
	return buf.Bytes(), nil
}

// DecodeMessage parses a full frame, validating its CRC16 and decoding
// every block in it.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < 4+2 {
		return Message{}, fmt.Errorf("decode message: frame too short: %d bytes", len(data))
	}
	frame := data[:len(data)-2]
	wantCRC := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
	if gotCRC := CRC16(frame); gotCRC != wantCRC {
		return Message{}, fmt.Errorf("decode message: crc mismatch: got 0x%04x want 0x%04x", gotCRC, wantCRC)
	}

	r := bytes.NewReader(frame)
	address, err := ReadUint32(r)
	if err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	seqAndFlags, err := ReadUint8(r)
	if err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	length, err := ReadUint8(r)
	if err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	body, err := ReadBytes(r, int(length))
	if err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	var blocks []Block
	for len(body) > 0 {
		block, n, err := DecodeBlock(body)
		if err != nil {
			return Message{}, fmt.Errorf("decode message: %w", err)
		}
		blocks = append(blocks, block)
		body = body[n:]
	}

	return Message{
		Address:        address,
		SequenceNumber: seqAndFlags & seqMask,
		MoreFragments:  seqAndFlags&flagMoreFragments != 0,
		Blocks:         blocks,
	}, nil
}
