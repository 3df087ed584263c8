package businesscase

import "errors"

var (
	// ErrGenerationFailed is returned to coalesced waiters when the
	// in-flight generation settled without producing a cache entry. The
	// initiating caller receives the generator's original error instead.
	ErrGenerationFailed = errors.New("business case generation failed")

	// ErrGenerationTimeout is returned to a coalesced waiter whose wait
	// deadline elapsed before the in-flight generation settled.
	ErrGenerationTimeout = errors.New("business case generation timeout")
)
