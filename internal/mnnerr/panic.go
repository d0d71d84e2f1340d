package mnnerr

import (
	"fmt"
	"runtime"
	"strings"
)

// PanicError is the cause attached to a SyncError built from a recovered panic.
type PanicError struct {
	Value    any
	Location string
	Stack    []byte
}

func (p *PanicError) Error() string {
	if p.Location != "" {
		return fmt.Sprintf("panic at %s: %v", p.Location, p.Value)
	}
	return fmt.Sprintf("panic: %v", p.Value)
}

// Recovered converts a value returned by recover into a SyncError. It must
// be called from the deferred function that recovered, so the panicking
// frame is still on the stack.
func Recovered(value any, stack []byte) *Error {
	p := &PanicError{Value: value, Location: panicSite(), Stack: stack}
	return &Error{Kind: KindSync, Location: p.Location, cause: p, Details: []string{"work panicked"}}
}

// panicSite finds the first frame below runtime.gopanic that is not part of
// the runtime itself.
func panicSite() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	for {
		f, more := frames.Next()
		if strings.HasPrefix(f.Function, "runtime.") {
			if f.Function == "runtime.gopanic" || strings.HasPrefix(f.Function, "runtime.panic") {
				sawPanic = true
			}
		} else if sawPanic {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}
