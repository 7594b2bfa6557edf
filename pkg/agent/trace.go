package agent

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// toolErrorObservation renders a failed call as an observation the model can
// reason about. At most frames levels of the error chain are kept.
func toolErrorObservation(tool string, err error, frames int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution error in %s:\n", tool)
	level := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		if level == frames {
			b.WriteString("  ...\n")
			break
		}
		fmt.Fprintf(&b, "  %s\n", e.Error())
		level++
	}
	return strings.TrimRight(b.String(), "\n")
}

// panicObservation renders a recovered panic with up to frames stack frames,
// innermost first.
func panicObservation(tool string, value any, frames int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution error in %s:\n  panic: %v\n", tool, value)
	for _, f := range callerFrames(frames) {
		fmt.Fprintf(&b, "  at %s\n", f)
	}
	return strings.TrimRight(b.String(), "\n")
}

// callerFrames is meant to be called from a deferred recover. Runtime frames
// (gopanic and friends) are skipped.
func callerFrames(limit int) []string {
	if limit <= 0 {
		return nil
	}
	pcs := make([]uintptr, 64)
	n := runtime.Callers(4, pcs)
	iter := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		f, more := iter.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line))
			if len(out) == limit {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}
