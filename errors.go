package brec

import (
	"errors"
	"fmt"
)

var (
	// ErrBadDescriptor is returned for an algorithm descriptor that does not
	// parse as "featureSpec" or "featureSpec:distanceSpec".
	ErrBadDescriptor = errors.New("malformed algorithm descriptor")

	// ErrNilTransform is returned when an algorithm ends up without a
	// feature transform, which no operation can work without.
	ErrNilTransform = errors.New("algorithm has no transform")

	// ErrNilDistance is returned when a comparison is requested from a
	// classifier-mode algorithm.
	ErrNilDistance = errors.New("algorithm has no distance")

	// ErrMissingPlaceholder is returned when a sharded comparison output
	// has no shard index placeholder in its name.
	ErrMissingPlaceholder = errors.New("sharded output name has no %d placeholder")

	// ErrSizeMismatch is returned when a stored score matrix disagrees with
	// the record lists it is paired with.
	ErrSizeMismatch = errors.New("matrix dimensions do not match record lists")
)

// FatalError marks a configuration or environment failure the run cannot
// recover from: a malformed descriptor, a missing capability, an unusable
// output target. Per-record enrollment failures are data, not errors, and
// never surface this way.
//
// The original underlying error can be accessed via errors.Unwrap.
type FatalError struct {
	// Op is the operation that failed, e.g. "train" or "compare".
	Op    string
	cause error
}

func fatal(op string, cause error) *FatalError {
	return &FatalError{Op: op, cause: cause}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.cause)
}

func (e *FatalError) Unwrap() error { return e.cause }

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
