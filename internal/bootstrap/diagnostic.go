package bootstrap

import "strings"

// Diagnostic shortens an error to one line: the second-to-last line of its
// text, where multi-line runtime errors put the exception. Single-line
// errors are returned whole.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	lines := strings.Split(err.Error(), "\n")
	if len(lines) < 2 {
		return lines[0]
	}
	return lines[len(lines)-2]
}
