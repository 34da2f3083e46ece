package compiler

import "fmt"

// CompileError is one diagnostic collected during a single compile run.
// Compile accumulates these via go-multierror so panic-mode recovery
// can report every independent syntax error from one pass, per spec.md
// §7, rather than nilan's original single sticky error.
type CompileError struct {
	Line    int
	Where   string
	Message string
}

// Error formats per spec.md §7: "[line N] Error <where>: <msg>", where
// <where> is omitted entirely for scanner-reported Error tokens.
func (e *CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Where, e.Message)
}
