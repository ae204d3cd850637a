package osutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on the first Ctrl+C or SIGTERM. A second
// signal after stop is called gets the default behaviour back.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
