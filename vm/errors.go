package vm

import "fmt"

// RuntimeError is returned when the dispatch loop hits a failure —
// a type mismatch, an undefined global — after compilation already
// succeeded. The VM halts immediately and resets its stack (spec.md
// §7); unlike the teacher's emoji-decorated vm.RuntimeError, Error()
// here matches spec.md's exact wire format so a caller can write it to
// stderr unmodified.
type RuntimeError struct {
	Message string
	Line    int
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d] in script\n", e.Message, e.Line)
}
