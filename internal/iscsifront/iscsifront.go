// Package iscsifront is the minimal stub satisfying daemon.ISCSIFront
// (spec §1's PDU-parser non-goal, §6 create_iscsi_conn). It reads only
// the opcode byte of the iSCSI login PDU — enough to ack or reject —
// then holds the connection open, counting it against the PG/Portal ref
// until the peer closes. Full PDU parsing is out of scope by spec and
// stays out of scope here.
package iscsifront

import (
	"bufio"
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/grimm-is/istgtd/internal/daemon"
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/portal"
)

// loginOpcode is the iSCSI Login Request PDU's opcode byte (RFC 7143
// §10.12.1: 0x03, BHS byte 0's low 6 bits with the I bit masked off).
const loginOpcode = 0x03

// Front implements daemon.ISCSIFront.
type Front struct{}

// New returns a Front ready to use; it holds no state of its own.
func New() *Front { return &Front{} }

// CreateConn reads the login PDU's opcode byte, rejects anything that
// isn't a login request, and otherwise spawns the per-connection
// goroutine that holds the session open until the peer disconnects.
func (f *Front) CreateConn(ctx context.Context, d *daemon.Daemon, pg *portal.PortalGroup, p *portal.Portal, conn net.Conn) error {
	logger := logging.WithComponent("iscsifront")
	id := uuid.New()

	r := bufio.NewReader(conn)
	opcodeByte, err := r.ReadByte()
	if err != nil {
		return isterrors.Wrap(err, isterrors.KindIoFailed, "read login opcode")
	}
	if opcodeByte&0x3f != loginOpcode {
		logger.Printf("session %s: rejecting non-login opcode 0x%02x on pg %d", id, opcodeByte, pg.Tag)
		return isterrors.Errorf(isterrors.KindBadPortal, "expected login PDU, got opcode 0x%02x", opcodeByte)
	}

	logger.Printf("session %s: login accepted on pg %d portal %s", id, pg.Tag, p.Label)

	go func() {
		defer func() {
			conn.Close()
			pg.DecRef()
			p.DecRef()
			d.AddActiveConns(-1)
			logger.Printf("session %s: closed", id)
		}()

		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	return nil
}
