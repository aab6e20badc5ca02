package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownReason names which signal asked the gateway to stop, so the
// exit log line can distinguish an orchestrator-driven stop from an
// operator's Ctrl-C instead of printing a bare "shutting down".
type ShutdownReason struct {
	Signal os.Signal
}

// String reports the reason in the gateway's own shutdown vocabulary.
func (r ShutdownReason) String() string {
	switch r.Signal {
	case syscall.SIGTERM:
		return "SIGTERM (orchestrator stop)"
	case os.Interrupt:
		return "SIGINT (operator interrupt)"
	default:
		return fmt.Sprintf("signal %v", r.Signal)
	}
}

// SetupSignalHandler creates a context that is canceled on SIGINT or SIGTERM.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return ctx
}

// WaitForShutdown blocks until a shutdown signal is received and reports
// why, for the listener's drain-and-exit path in cmd/uniapi.
func WaitForShutdown() <-chan ShutdownReason {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	reasons := make(chan ShutdownReason, 1)
	go func() {
		reasons <- ShutdownReason{Signal: <-sigChan}
	}()
	return reasons
}
