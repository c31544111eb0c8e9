package decontam

import (
	"fmt"
	"strings"
)

// RunError reports an external command that exited non-zero.
type RunError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("command %q exited with code %d: %s",
		e.Cmd, e.ExitCode, strings.TrimSpace(e.Stderr))
}
