package persistence

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel is the zstd level used for model and gallery bodies.
const DefaultCompressionLevel = 3

// Compress runs writeFunc against a zstd-compressed view of w. The compressed
// frame is flushed and closed before returning, so w holds a complete stream.
func Compress(w io.Writer, level int, writeFunc func(*Writer) error) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return err
	}
	if err := writeFunc(NewWriter(enc)); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Decompress runs readFunc against a zstd-decompressed view of r.
func Decompress(r io.Reader, readFunc func(*Reader) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()
	return readFunc(NewReader(dec))
}
