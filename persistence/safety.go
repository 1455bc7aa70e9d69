package persistence

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

var (
	// ErrUnsupportedArchitecture means the zero-copy float codec has no
	// known-safe layout on this CPU.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture: only amd64 and arm64 are supported")

	// ErrBigEndian means the host byte order does not match the file format.
	ErrBigEndian = errors.New("big-endian systems are not supported")

	// ErrUnalignedAccess means a slice cannot be reinterpreted in place.
	ErrUnalignedAccess = errors.New("unaligned memory access detected")
)

// The payload codec reinterprets []float32 as raw bytes, which is only
// sound little-endian and with predictable alignment. Refuse to start
// anywhere else.
func init() {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		panic(fmt.Sprintf("brec/persistence: %v: %s", ErrUnsupportedArchitecture, runtime.GOARCH))
	}
	if !hostIsLittleEndian() {
		panic(fmt.Sprintf("brec/persistence: %v", ErrBigEndian))
	}
}

func hostIsLittleEndian() bool {
	probe := uint16(1)
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}

// validateFloat32SliceAlignment rejects slices whose backing array is not
// word aligned for in-place reinterpretation.
func validateFloat32SliceAlignment(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if addr := uintptr(unsafe.Pointer(&vec[0])); addr%4 != 0 {
		return fmt.Errorf("%w: float32 slice at address 0x%x", ErrUnalignedAccess, addr)
	}
	return nil
}
