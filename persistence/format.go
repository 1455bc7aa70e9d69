package persistence

import "errors"

const (
	// MagicNumber identifies brec binary files (ASCII: "BREC")
	MagicNumber = 0x42524543
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// File kinds
	KindModel   = 1
	KindGallery = 2
	KindMatrix  = 3
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("invalid file kind")
)

// FileHeader is the 36-byte header at the start of every brec binary file.
// Gallery and matrix files keep it uncompressed ahead of the body, so those
// files can be identified without decoding them; model files compress the
// whole stream, header included.
type FileHeader struct {
	Magic    uint32 // 0x42524543 ("BREC")
	Version  uint32 // File format version
	Kind     uint8  // 1=Model, 2=Gallery, 3=Matrix
	Padding1 [3]byte
	Count    uint64 // Record count, 0 when streamed and unknown up front
	Dim      uint32 // Payload dimensionality when uniform across records, else 0
	Padding2 [4]byte
	Reserved [8]byte // Future use
}
