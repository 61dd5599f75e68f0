// Package uctlfront is the minimal stub satisfying daemon.UCTLFront
// (spec §1/§6's "simple line-oriented UCTL channel"). Each connection
// gets a newline-terminated command prompt supporting STATUS (daemon
// state + generation), STATS (prometheus dump), PG/IG (table listing),
// and QUIT.
package uctlfront

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/grimm-is/istgtd/internal/daemon"
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/portal"
)

// Front implements daemon.UCTLFront.
type Front struct{}

// New returns a Front ready to use; it holds no state of its own.
func New() *Front { return &Front{} }

// CreateConn spawns the per-connection goroutine that services the line
// protocol until the peer disconnects or sends QUIT.
func (f *Front) CreateConn(ctx context.Context, d *daemon.Daemon, p *portal.Portal, conn net.Conn) error {
	logger := logging.WithComponent("uctlfront")
	id := uuid.New()
	logger.Printf("session %s: connected on %s", id, p.Label)

	go func() {
		defer func() {
			conn.Close()
			p.DecRef()
			d.AddActiveConns(-1)
			logger.Printf("session %s: closed", id)
		}()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			reply, quit := handleLine(d, line)
			if _, err := fmt.Fprintf(conn, "%s\n", reply); err != nil {
				return
			}
			if quit {
				return
			}
		}
	}()

	return nil
}

func handleLine(d *daemon.Daemon, line string) (reply string, quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR empty command", false
	}

	switch strings.ToUpper(fields[0]) {
	case "STATUS":
		return fmt.Sprintf("OK state=%s generation=%d", d.State(), d.Generation()), false
	case "STATS":
		dump, err := d.Metrics().Dump()
		if err != nil {
			return "ERR " + err.Error(), false
		}
		return "OK\n" + dump, false
	case "PG":
		return listPGs(d), false
	case "IG":
		return listIGs(d), false
	case "QUIT":
		return "OK bye", true
	default:
		return "ERR " + isterrors.Errorf(isterrors.KindUnknown, "unknown command %q", fields[0]).Error(), false
	}
}

func listPGs(d *daemon.Daemon) string {
	d.RLock()
	defer d.RUnlock()

	var b strings.Builder
	b.WriteString("OK")
	for _, pg := range d.PGTable().Groups {
		if pg.Free() {
			continue
		}
		fmt.Fprintf(&b, "\npg=%d ref=%d portals=%d", pg.Tag, pg.Ref(), len(pg.Portals))
	}
	return b.String()
}

func listIGs(d *daemon.Daemon) string {
	d.RLock()
	defer d.RUnlock()

	var b strings.Builder
	b.WriteString("OK")
	for _, ig := range d.IGTable().Groups {
		if ig.Free() {
			continue
		}
		fmt.Fprintf(&b, "\nig=%d ref=%d initiators=%d", ig.Tag, ig.Ref(), len(ig.Initiators))
	}
	return b.String()
}
