// Package signalthread implements component G: a dedicated goroutine
// translating process signals into daemon actions (spec §4.7).
// INT/TERM request an orderly exit via the reload channel's CmdExit;
// QUIT exits the process immediately with status 0; HUP triggers
// Daemon.Reload; USR1/USR2 toggle a trace flag. Go delivers
// no SIGPIPE to user code (the runtime turns a write to a closed fd into
// an EPIPE return instead), so the original "ignore SIGPIPE on the main
// thread" step has no equivalent here and is simply absent.
package signalthread

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/grimm-is/istgtd/internal/daemon"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/reload"
)

// traceEnabled is toggled by USR1 (clear/off)/USR2 (enable all/on);
// exported so front-ends can gate verbose per-PDU logging on it (spec
// §4.7's trace-flag note).
var traceEnabled atomic.Bool

// TraceEnabled reports whether USR2 has turned tracing on more recently
// than USR1 cleared it.
func TraceEnabled() bool { return traceEnabled.Load() }

// Run registers the signal set and blocks, dispatching one signal at a
// time, until ctx is canceled. It is meant to run in its own goroutine;
// cmd/istgtd starts it just before Daemon.Run.
func Run(ctx context.Context, d *daemon.Daemon) {
	logger := logging.WithComponent("signalthread")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGQUIT:
				logger.Printf("received %s, exiting immediately", sig)
				os.Exit(0)
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Printf("received %s, requesting shutdown", sig)
				if err := d.ReloadChannel().Submit(ctx, reload.CmdExit, nil); err != nil {
					logger.Printf("exit request failed: %v", err)
				}
			case syscall.SIGHUP:
				logger.Printf("received SIGHUP, reloading configuration")
				if err := d.Reload(ctx); err != nil {
					logger.Printf("reload failed: %v", err)
				}
			case syscall.SIGUSR1:
				traceEnabled.Store(false)
				logger.Printf("trace logging disabled")
			case syscall.SIGUSR2:
				traceEnabled.Store(true)
				logger.Printf("trace logging enabled")
			}
		case <-ctx.Done():
			return
		}
	}
}
