package pcview

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a load session terminated on request. It is not a
// failure; callers must not surface it as one.
var ErrCancelled = errors.New("cancelled")

// ErrUnsupportedFormat is returned when the input matches none of the known
// decoders.
var ErrUnsupportedFormat = errors.New("unsupported point cloud format")

// NetworkError reports a failed download: a non-2xx response or a stream read
// failure. It is fatal for the session and is never retried.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
