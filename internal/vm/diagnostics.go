package vm

import (
	"fmt"
	"strings"
)

// FrameTrace captures one call frame's position at the moment a
// runtime error was raised.
type FrameTrace struct {
	// Name is empty for the top-level script frame.
	Name string
	Line int
}

func (f FrameTrace) String() string {
	if f.Name == "" {
		return fmt.Sprintf("[line %d] in script", f.Line)
	}
	return fmt.Sprintf("[line %d] in %s()", f.Line, f.Name)
}

// RuntimeError is returned by Interpret when execution fails. It carries
// the error message plus a snapshot of the call stack, most
// recent frame first, matching the diagnostic format of the reference
// interpreter.
type RuntimeError struct {
	Message string
	Stack   []FrameTrace
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, fr := range e.Stack {
		b.WriteByte('\n')
		b.WriteString(fr.String())
	}
	return b.String()
}
