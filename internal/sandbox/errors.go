package sandbox

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ScriptError is an uncaught script exception. Its text lists the call
// stack, most recent call last, followed by the exception itself and a
// trailing newline.
type ScriptError struct {
	Message string
	Stack   []string
}

func (e *ScriptError) Error() string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for i := len(e.Stack) - 1; i >= 0; i-- {
		b.WriteString("  at ")
		b.WriteString(e.Stack[i])
		b.WriteByte('\n')
	}
	b.WriteString(e.Message)
	b.WriteByte('\n')
	return b.String()
}

// scriptError converts VM errors into ScriptError. Other errors pass
// through. InterruptedError is checked first; it embeds Exception.
func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ScriptError{Message: fmt.Sprint("InterruptedError: ", interrupted.Value())}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		se := &ScriptError{Message: "Error"}
		if v := ex.Value(); v != nil {
			se.Message = v.String()
		}
		for _, frame := range ex.Stack() {
			var buf bytes.Buffer
			frame.Write(&buf)
			se.Stack = append(se.Stack, buf.String())
		}
		return se
	}
	return err
}
