// Package diag provides the typed error taxonomy and diagnostic-stream
// logging used across the allocator. Diagnostics are written to stderr;
// there is no external logging dependency, matching the rest of the corpus.
package diag

import (
	"fmt"
	"os"
	"runtime"
)

// Kind classifies an allocator error, one entry per failure mode named in
// the error-handling design.
type Kind string

const (
	ConfigInvalid        Kind = "CONFIG_INVALID"
	RegionReserveFailed  Kind = "REGION_RESERVE_FAILED"
	BookkeepingExhausted Kind = "BOOKKEEPING_EXHAUSTED"
	MappingFailed        Kind = "MAPPING_FAILED"
	OutOfMemory          Kind = "OUT_OF_MEMORY"
	Overflow             Kind = "OVERFLOW"
	UnknownAddress       Kind = "UNKNOWN_ADDRESS"
)

// Error is the allocator's standard error shape: a kind, a message and the
// caller that raised it, so diagnostics read the same way everywhere.
type Error struct {
	Kind    Kind
	Message string
	Caller  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (at %s)", e.Kind, e.Message, e.Caller)
}

// New builds an *Error, capturing the immediate caller for diagnostics.
func New(kind Kind, format string, args ...interface{}) *Error {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Caller:  caller,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Logf writes a diagnostic line to stderr, the propagation channel spec.md
// §7 requires alongside the null/false return value.
func Logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "mmapheap: "+format+"\n", args...)
}
