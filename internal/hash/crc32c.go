package hash

import (
	"hash"
	"hash/crc32"
)

// castagnoli is built once and shared by every checksum call.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data in one shot. The
// stdlib dispatches to SSE4.2 or the ARM CRC extension when the hardware
// has it.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.Hash32 for payloads
// that arrive in chunks.
func NewCRC32C() hash.Hash32 {
	return crc32.New(castagnoli)
}
