package metaspace

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when no more virtual space can be reserved
	// or committed. Callers decide whether it is fatal.
	ErrOutOfMemory = errors.New("metaspace: out of memory")

	// ErrCommitLimit is an ErrOutOfMemory caused by the commit limit.
	ErrCommitLimit = fmt.Errorf("%w: commit limit reached", ErrOutOfMemory)

	ErrInvalidSize     = errors.New("metaspace: invalid allocation size")
	ErrTooLarge        = errors.New("metaspace: allocation exceeds largest chunk")
	ErrInvalidSequence = errors.New("metaspace: invalid allocation sequence")
	ErrUnknownCategory = errors.New("metaspace: unknown loader category")
	ErrLoaderExists    = errors.New("metaspace: loader already registered")
	ErrLoaderNotFound  = errors.New("metaspace: loader not found")
)

// panicerr reports a broken invariant. These are never recoverable.
func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
