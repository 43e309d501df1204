package givenergy

// CRC16 calculates the Modbus CRC16 checksum.
//
// The result is returned byte-swapped relative to the conventional
// little-endian CRC register, which is exactly the order GivEnergy puts
// the check value on the wire when it is appended big-endian.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if (crc & 0x0001) != 0 {
				crc >>= 1
				crc ^= 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return ((crc & 0xFF) << 8) | ((crc >> 8) & 0xFF)
}
