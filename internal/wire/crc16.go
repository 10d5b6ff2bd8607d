package wire

// CRC16Table is the 256-entry CRC-CCITT (poly 0x1021) lookup table used to
// checksum outgoing and incoming Messages. The nonce generator's resync
// algorithm reuses this exact table keyed by a message sequence number, so
// both sides of the radio link derive the same reseed value without
// exchanging any extra state.
var CRC16Table [256]uint16

func init() {
	const poly = 0x1021
	for i := range 256 {
		crc := uint16(i) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		CRC16Table[i] = crc
	}
}

// CRC16 computes the checksum of data using CRC16Table.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc << 8) ^ CRC16Table[byte(crc>>8)^b]
	}
	return crc
}
