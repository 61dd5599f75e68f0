// Package acceptloop implements component I: the single-goroutine
// readiness multiplex over every open PG/UCTL listener plus the reload
// channel, via golang.org/x/sys/unix.Poll (spec §4.9). The descriptor
// set is rebuilt from scratch after every reload command, matching the
// "restart the readiness set" behavior spec §4.9 describes.
package acceptloop

import (
	"context"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/grimm-is/istgtd/internal/daemon"
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/reload"
	"github.com/grimm-is/istgtd/internal/section"
)

// pollTimeoutMillis matches POLLWAIT (spec §4.9: "~5s when poll-based").
const pollTimeoutMillis = 5000

// source is one fd registered in the current poll set. port == nil marks
// the self-pipe's read end (the reload-channel wakeup source).
type source struct {
	fd   int
	pg   *portal.PortalGroup // nil for a UCTL portal or the self-pipe
	port *portal.Portal      // nil for the self-pipe
}

// Run is the accept loop entry point; it is the function daemon.Run
// invokes as its injected accept callback. It returns when the reload
// channel delivers CmdExit or ctx is canceled.
func Run(ctx context.Context, d *daemon.Daemon) error {
	logger := logging.WithComponent("acceptloop")

	wakeupR, wakeupW, err := os.Pipe()
	if err != nil {
		return isterrors.Wrap(err, isterrors.KindFatal, "create self-pipe")
	}
	defer wakeupR.Close()
	defer wakeupW.Close()

	// pending carries the actual Request corresponding to the next
	// self-pipe byte; Submit's own in-flight slot keeps at most one
	// request in flight, so a depth-1 channel never backs up.
	pending := make(chan reload.Request, 1)
	go forwardReloads(ctx, d.ReloadChannel(), wakeupW, pending)

	for {
		srcs := buildSources(d, wakeupR)

		pollfds := make([]unix.PollFd, len(srcs))
		for i, s := range srcs {
			pollfds[i] = unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN}
		}

		n, err := unix.Poll(pollfds, pollTimeoutMillis)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logger.Printf("poll failed: %v", err)
			continue
		}
		if n == 0 {
			continue // timeout, nothing ready
		}

		exit := false
		for i, pfd := range pollfds {
			if pfd.Revents&unix.POLLIN == 0 {
				continue
			}
			s := srcs[i]
			if s.port == nil {
				if handleReload(d, wakeupR, pending, logger) {
					exit = true
				}
				// The command may have closed or reopened listeners:
				// rebuild the descriptor set before any further accept.
				break
			}
			dispatch(ctx, d, logger, s)
		}
		if exit {
			return nil
		}
	}
}

func buildSources(d *daemon.Daemon, wakeupR *os.File) []source {
	d.RLock()
	defer d.RUnlock()

	srcs := []source{{fd: int(wakeupR.Fd())}}

	for _, pg := range d.PGTable().Groups {
		if pg.Free() {
			continue
		}
		for _, p := range pg.Portals {
			if fd, ok := p.Fd(); ok {
				srcs = append(srcs, source{fd: fd, pg: pg, port: p})
			}
		}
	}
	for _, p := range d.UCTLSet().Portals {
		if fd, ok := p.Fd(); ok {
			srcs = append(srcs, source{fd: fd, port: p})
		}
	}
	return srcs
}

// dispatch implements spec §4.9 steps 1-2: accept, classify transient
// errors, and hand the connection to the right front-end.
func dispatch(ctx context.Context, d *daemon.Daemon, logger *log.Logger, s source) {
	tag := strconv.Itoa(s.port.Tag)

	conn, err := s.port.Accept()
	if err != nil {
		class := classifyAcceptErr(err)
		d.Metrics().AcceptErrors.WithLabelValues(tag, class).Inc()
		err = isterrors.Class(isterrors.Tag(err, s.port.Tag), class)
		if class != "transient" {
			logger.Printf("accept on %s: %v", s.port.Label, err)
		}
		return
	}

	id := uuid.New()
	if s.pg != nil {
		d.Metrics().Accepts.WithLabelValues(tag).Inc()
		if err := d.DispatchISCSI(ctx, s.pg, s.port, conn); err != nil {
			logger.Printf("iscsi dispatch %s: %v", id, err)
			conn.Close()
		}
		return
	}

	d.Metrics().Accepts.WithLabelValues(tag).Inc()
	if err := d.DispatchUCTL(ctx, s.port, conn); err != nil {
		logger.Printf("uctl dispatch %s: %v", id, err)
		conn.Close()
	}
}

// classifyAcceptErr implements spec §4.9 step 1's transient-error list.
func classifyAcceptErr(err error) string {
	switch {
	case isterrors.Is(err, unix.EINTR), isterrors.Is(err, unix.ECONNABORTED), isterrors.Is(err, unix.ECONNRESET):
		return "transient"
	default:
		return "other"
	}
}

// forwardReloads bridges the channel-based reload protocol into the
// poll loop's fd-based readiness set: it blocks receiving requests and,
// for each one, stashes it in pending and writes a wakeup byte to the
// self-pipe.
func forwardReloads(ctx context.Context, ch *reload.Channel, w *os.File, pending chan<- reload.Request) {
	for {
		select {
		case req := <-ch.Requests():
			pending <- req
			w.Write([]byte{1})
		case <-ctx.Done():
			return
		}
	}
}

// handleReload drains the self-pipe, applies the pending command (spec
// §4.9 step 3 / §4.8 step 3), and signals completion. It reports whether
// CmdExit was requested.
func handleReload(d *daemon.Daemon, wakeupR *os.File, pending <-chan reload.Request, logger *log.Logger) bool {
	buf := make([]byte, 64)
	for {
		n, err := wakeupR.Read(buf)
		if err != nil && err != io.EOF {
			logger.Printf("self-pipe read: %v", err)
		}
		if n < len(buf) {
			break
		}
	}

	req := <-pending
	switch req.Cmd {
	case reload.CmdExit:
		req.Complete(nil)
		return true
	case reload.CmdDelete:
		cfg, _ := req.Payload.(section.Config)
		d.ApplyPGDelete(cfg)
		req.Complete(nil)
	case reload.CmdUpdate:
		cfg, _ := req.Payload.(section.Config)
		d.ApplyPGUpdate(cfg)
		req.Complete(nil)
	default:
		logger.Printf("unknown reload command %v", req.Cmd)
		req.Complete(isterrors.Errorf(isterrors.KindFatal, "unknown reload command %v", req.Cmd))
	}
	return false
}
