package biflow

import (
	"errors"
	"fmt"
)

// Error kinds per spec §7. NotFound is deliberately not represented here:
// a cache miss is the ordinary two-value map-lookup idiom, not an error.
var (
	// ErrFormat marks a record that could not be interpreted (missing key
	// fields, or a biflow template that failed structural validation).
	// Recovery: emit the record as passthrough; the stream continues.
	ErrFormat = errors.New("biflow: format error")

	// ErrOverflow marks an append that would exceed the 65535-byte message
	// cap. Recovery: flush the current message, initialize a new one, and
	// retry the append.
	ErrOverflow = errors.New("biflow: message would overflow maximum length")

	// ErrOutOfMemory marks a buffer-growth or envelope-allocation failure.
	// Fatal for the current call; propagates to the plugin entry point.
	ErrOutOfMemory = errors.New("biflow: allocation failed")

	// ErrInvariant marks a programmer error (e.g. appending to a message
	// builder that was never initialized, or an invalid set id). Fatal;
	// propagates to the plugin entry point.
	ErrInvariant = errors.New("biflow: invariant violated")
)

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func invariantErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

func overflowErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOverflow, fmt.Sprintf(format, args...))
}

func outOfMemoryErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfMemory, fmt.Sprintf(format, args...))
}
