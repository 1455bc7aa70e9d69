// Package hash holds the CRC32-Castagnoli checksum helpers used for blob
// integrity.
//
// Uploads carry CRC32C sums because S3 validates that algorithm on the
// server side, and the stdlib accelerates it in hardware on x86 (SSE4.2)
// and ARM (CRC extension).
//
//	sum := hash.CRC32C(data)
//
// or, for payloads that arrive in chunks:
//
//	h := hash.NewCRC32C()
//	h.Write(part)
//	sum := h.Sum32()
package hash
