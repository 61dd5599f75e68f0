package daemon

import (
	"context"
	"net"

	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/section"
)

// ISCSIFront is the out-call seam for the iSCSI PDU/login/session
// subsystem (spec §1 non-goal, §6 "create_iscsi_conn"). The core never
// looks inside an accepted connection past handing it off here.
type ISCSIFront interface {
	CreateConn(ctx context.Context, d *Daemon, pg *portal.PortalGroup, p *portal.Portal, conn net.Conn) error
}

// UCTLFront is the out-call seam for the management channel
// (spec §6 "create_uctl_conn").
type UCTLFront interface {
	CreateConn(ctx context.Context, d *Daemon, p *portal.Portal, conn net.Conn) error
}

// LUManager is the out-call seam for the SCSI logical-unit subsystem
// (spec §1 non-goal, §6's lu_* call shape).
type LUManager interface {
	Init(cfg section.Config) error
	CreateThreads() error
	SetAllState(state string) error
	ReloadDelete(liveTags map[int]bool) error
	ReloadUpdate(cfg section.Config) error
	Shutdown(ctx context.Context) error
}
