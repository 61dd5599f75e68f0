// Command istgtd is the iSCSI target daemon's control-plane process: it
// parses the config file, builds the PG/IG tables, opens listeners, and
// runs the accept loop, signal thread, and reload protocol described in
// internal/daemon until asked to exit (spec §6's CLI surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grimm-is/istgtd/internal/acceptloop"
	"github.com/grimm-is/istgtd/internal/daemon"
	"github.com/grimm-is/istgtd/internal/install"
	"github.com/grimm-is/istgtd/internal/iscsifront"
	"github.com/grimm-is/istgtd/internal/lu"
	"github.com/grimm-is/istgtd/internal/signalthread"
	"github.com/grimm-is/istgtd/internal/uctlfront"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("istgtd", flag.ContinueOnError)
	configPath := fs.String("c", "", "path to the configuration file")
	pidFile := fs.String("p", "", "path to the pidfile (overrides ISTGTD_PIDFILE)")
	logFacility := fs.String("l", "", "log facility (accepted for compatibility, unused)")
	traceMode := fs.String("m", "1", "trace mode: 0=traditional, 1=normal, 2=experimental")
	traceFlag := fs.String("t", "none", "trace flags: all|net|iscsi|scsi|lu|none")
	quiet := fs.Bool("q", false, "quiet: suppress informational logging")
	foreground := fs.Bool("D", true, "run in the foreground (always true; istgtd never self-daemonizes)")
	showVersion := fs.Bool("V", false, "print version and exit")
	showHelp := fs.Bool("H", false, "print usage and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: istgtd -c <config> [flags]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if *showHelp {
		fs.Usage()
		return 0
	}
	if *showVersion {
		fmt.Println("istgtd", version)
		return 0
	}

	_ = logFacility
	_ = traceMode
	_ = traceFlag
	_ = quiet
	_ = foreground

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "istgtd: -c <config> is required")
		fs.Usage()
		return 1
	}
	if *pidFile != "" {
		os.Setenv("ISTGTD_PIDFILE", *pidFile)
	}
	_ = install.GetPidFile() // result unused; daemon.New resolves the pidfile path itself

	d, err := daemon.New(*configPath, iscsifront.New(), uctlfront.New(), lu.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "istgtd: init failed: %v\n", err)
		return 1
	}

	// ctx bounds the signal thread's lifetime, not the accept loop's: the
	// signal thread turns SIGINT/TERM into a CmdExit request through
	// the reload channel so the accept loop exits via its normal control
	// path (spec §4.9's ordering guarantee), rather than racing a directly
	// canceled context against the in-flight reload handshake.
	ctx, cancel := context.WithCancel(context.Background())
	go signalthread.Run(ctx, d)

	runErr := d.Run(ctx, acceptloop.Run)
	cancel()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "istgtd: %v\n", runErr)
		return 1
	}
	return 0
}
