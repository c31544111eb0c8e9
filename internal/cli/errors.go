package cli

import (
	"errors"
	"fmt"
)

// ErrUsage marks command-line misuse caught before any work starts.
var ErrUsage = errors.New("usage error")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUsage)
}
