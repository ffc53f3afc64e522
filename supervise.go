package workflow

import (
	"runtime"
	"strings"
)

// Go launches a supervised fire-and-forget goroutine. Escalation workflows,
// notifications and event-triggered runs go through here so a panic or error
// is logged instead of silently swallowed, and never blocks the caller.
func Go(logger Logger, name string, fn func() error) {
	logger = NormalizeLogger(logger)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 8096)
				n := runtime.Stack(stack, false)
				logger.Error("recovered from panic in %s: %v\n%s", name, r, cleanStackTrace(stack[:n]))
			}
		}()
		if err := fn(); err != nil {
			logger.Error("background task %s failed: %v", name, err)
		}
	}()
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	// drop everything up to and including the panic() call line and its
	// file reference line
	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
