// Package persistence provides binary serialization for trained models,
// galleries and score matrices.
//
// PLATFORM REQUIREMENTS:
// - Architecture: amd64 or arm64 only
// - Endianness: Little-endian (native on x86_64 and ARM64)
// - Alignment: 4-byte for float32/uint32, 8-byte for uint64
//
// The unsafe operations in this package are verified at runtime with alignment
// checks and platform validation. See safety.go for implementation details.
package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"
)

// Writer writes brec data in optimized binary format.
type Writer struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewWriter creates a new binary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteHeader writes the file header for the given kind.
func (bw *Writer) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, bw.byteOrder, header)
}

// WriteUint8 writes a single byte.
func (bw *Writer) WriteUint8(v uint8) error {
	return binary.Write(bw.w, bw.byteOrder, v)
}

// WriteUint32 writes a uint32.
func (bw *Writer) WriteUint32(v uint32) error {
	return binary.Write(bw.w, bw.byteOrder, v)
}

// WriteUint64 writes a uint64.
func (bw *Writer) WriteUint64(v uint64) error {
	return binary.Write(bw.w, bw.byteOrder, v)
}

// WriteBool writes a bool as a single 0/1 byte.
func (bw *Writer) WriteBool(v bool) error {
	var b uint8
	if v {
		b = 1
	}
	return bw.WriteUint8(b)
}

// WriteString writes a uint32 length prefix followed by the raw bytes.
func (bw *Writer) WriteString(s string) error {
	if err := bw.WriteUint32(uint32(len(s))); err != nil { //nolint:gosec
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := io.WriteString(bw.w, s)
	return err
}

// WriteBytes writes a uint32 length prefix followed by the raw bytes.
func (bw *Writer) WriteBytes(p []byte) error {
	if err := bw.WriteUint32(uint32(len(p))); err != nil { //nolint:gosec
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := bw.w.Write(p)
	return err
}

// WriteFloat32Slice writes a float32 slice as raw little-endian bytes.
// The count is not written; callers encode it separately.
func (bw *Writer) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}

	// Alignment must hold before the slice is reinterpreted as bytes.
	if err := validateFloat32SliceAlignment(vec); err != nil {
		return err
	}

	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// Reader reads brec data from binary format.
type Reader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewReader creates a new binary reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadHeader reads and validates the file header, checking it has the
// expected kind.
func (br *Reader) ReadHeader(kind uint8) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, br.byteOrder, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if header.Kind != kind {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKind, header.Kind, kind)
	}
	return &header, nil
}

// ReadUint8 reads a single byte.
func (br *Reader) ReadUint8() (uint8, error) {
	var v uint8
	err := binary.Read(br.r, br.byteOrder, &v)
	return v, err
}

// ReadUint32 reads a uint32.
func (br *Reader) ReadUint32() (uint32, error) {
	var v uint32
	err := binary.Read(br.r, br.byteOrder, &v)
	return v, err
}

// ReadUint64 reads a uint64.
func (br *Reader) ReadUint64() (uint64, error) {
	var v uint64
	err := binary.Read(br.r, br.byteOrder, &v)
	return v, err
}

// ReadBool reads a single 0/1 byte as a bool.
func (br *Reader) ReadBool() (bool, error) {
	b, err := br.ReadUint8()
	return b != 0, err
}

// ReadString reads a uint32 length prefix followed by the raw bytes.
func (br *Reader) ReadString() (string, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBytes reads a uint32 length prefix followed by the raw bytes.
func (br *Reader) ReadBytes() ([]byte, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFloat32Slice reads a float32 slice of the given length.
func (br *Reader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), count*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadFloat32SliceInto reads a float32 slice into the provided buffer.
func (br *Reader) ReadFloat32SliceInto(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return err
	}
	return nil
}

const fileBufferSize = 256 << 10

// SaveToFile streams writeFunc's output to filename. The bytes land in a
// temp file next to the target and are renamed into place on success, so a
// crashed writer never leaves a half-written model behind.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	_ = tmp.Chmod(0o644)

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriterSize(tmp, fileBufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	committed = true

	// The rename is durable only once the directory entry itself is synced.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return readFunc(bufio.NewReaderSize(f, fileBufferSize))
}
