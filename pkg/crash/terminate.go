package crash

import (
	"context"
	"fmt"
	"os"
)

// Terminator ends the process.
type Terminator interface {
	Terminate(code int)
}

// ProcessTerminator exits the running process.
type ProcessTerminator struct{}

func (ProcessTerminator) Terminate(code int) {
	os.Exit(code)
}

// Sender forwards saved reports to wherever they are collected.
type Sender interface {
	Send(ctx context.Context, path string) error
}

// NopSender doesn't send anything. Reports stay in the report directory.
type NopSender struct{}

func (NopSender) Send(context.Context, string) error {
	return nil
}

// wrap an error using the provided message and arguments.
func wrap(err error, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
