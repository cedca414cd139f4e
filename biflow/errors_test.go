package biflow

import (
	"errors"
	"testing"
)

func TestErrorConstructorsWrapTheirSentinel(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"format", formatErrorf("missing %s", "field"), ErrFormat},
		{"invariant", invariantErrorf("bad state"), ErrInvariant},
		{"overflow", overflowErrorf("message full"), ErrOverflow},
		{"outOfMemory", outOfMemoryErrorf("alloc failed"), ErrOutOfMemory},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if !errors.Is(c.err, c.sentinel) {
				t.Fatalf("%v does not wrap %v", c.err, c.sentinel)
			}
			for _, other := range []error{ErrFormat, ErrInvariant, ErrOverflow, ErrOutOfMemory} {
				if other == c.sentinel {
					continue
				}
				if errors.Is(c.err, other) {
					t.Fatalf("%v unexpectedly wraps unrelated sentinel %v", c.err, other)
				}
			}
		})
	}
}
