package mmap

import "errors"

// AccessPattern describes how mapped data is about to be read, so the
// kernel can tune readahead and page reclaim.
type AccessPattern int

const (
	// AccessDefault leaves kernel readahead untouched.
	AccessDefault AccessPattern = iota
	// AccessSequential announces a front-to-back scan.
	AccessSequential
	// AccessRandom announces scattered point reads.
	AccessRandom
	// AccessWillNeed asks for the pages to be faulted in ahead of use.
	AccessWillNeed
	// AccessDontNeed marks the pages as reclaimable.
	AccessDontNeed
)

var (
	// ErrClosed is returned for operations on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file reports a negative size.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrOutOfBounds is returned for a region outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for a negative read offset.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
