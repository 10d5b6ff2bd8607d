package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WriteUint8 appends a single byte.
func WriteUint8(buf *bytes.Buffer, v uint8) error {
	return buf.WriteByte(v)
}

// WriteUint16 appends v big-endian.
func WriteUint16(buf *bytes.Buffer, v uint16) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteUint32 appends v big-endian.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteOpaque8 appends a length-prefixed (1-byte length) byte string, the
// shape every MessageBlock body uses for its own header.
func WriteOpaque8(buf *bytes.Buffer, data []byte) error {
	if len(data) > 0xff {
		return fmt.Errorf("opaque data too long: %d bytes", len(data))
	}
	if err := WriteUint8(buf, uint8(len(data))); err != nil {
		return err
	}
	_, err := buf.Write(data)
	return err
}
