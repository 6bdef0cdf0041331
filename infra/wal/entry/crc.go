package entry

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func CRC32(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

func CRC32Valid(b []byte, sum uint32) bool {
	return CRC32(b) == sum
}
