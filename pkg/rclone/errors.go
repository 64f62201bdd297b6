package rclone

import (
	"fmt"
	"strings"
)

// CommandError is returned when rclone ran but exited with a non-zero status
type CommandError struct {
	Op          string
	ExitCode    int
	Diagnostics []string
}

func (err *CommandError) Error() string {
	if len(err.Diagnostics) == 0 {
		return fmt.Sprintf("rclone %s exited with status %d", err.Op, err.ExitCode)
	}
	return strings.Join(err.Diagnostics, "\n")
}

func newCommandError(op string, res *Result) *CommandError {
	return &CommandError{
		Op:          op,
		ExitCode:    res.ExitCode,
		Diagnostics: diagnostics(res.Stderr),
	}
}

// diagnostics splits rclone's stderr into its non-empty lines
func diagnostics(stderr string) []string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
