package tender

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestionInProgress is returned when an ingestion is requested while
	// another one is still running.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrInvalidArgument indicates a bad limit, k, or empty query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingDimensionMismatch indicates the embedding function returned
	// vectors whose length differs from the indexed ones.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrParse indicates the uploaded byte stream is not usable CSV.
	ErrParse = errors.New("malformed csv")
)

// ParseError aborts an ingestion. Nothing is committed when it is returned.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DimensionMismatchError reports the expected and actual vector lengths.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index has %d, got %d", e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrEmbeddingDimensionMismatch
}

// InvalidArgument wraps ErrInvalidArgument with a field-specific message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
