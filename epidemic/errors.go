package epidemic

import "errors"

// ErrInvalidParameter indicates a malformed probability, scale, or size
// was passed at construction. It always points at a configuration bug in
// the caller.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInvalidStateTransition indicates an attempt to move an agent along
// an edge that does not exist in the disease state machine. It points at
// a scheduling bug inside the engine, not at bad input, and is never
// swallowed.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrNotInitialized indicates Step or Run was called before Initialize
// completed.
var ErrNotInitialized = errors.New("engine not initialized")
