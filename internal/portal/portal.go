package portal

import (
	"net"
	"sync/atomic"

	"github.com/grimm-is/istgtd/internal/sockutil"
)

// UCTLTag is the sentinel PG tag carried by every UCTL portal (spec §3/§6).
// It is distinct from FreeTag (0, "slot is free") and from any real PG tag
// (spec requires PG tags to be positive 16-bit integers).
const UCTLTag = 0xFFFF

// FreeTag marks a reclaimable PG slot (spec §3).
const FreeTag = 0

// Portal is one listening endpoint (spec §3).
type Portal struct {
	Label string
	Host  string
	Port  string
	Tag   int
	Idx   int

	sock *sockutil.Listener
	ref  atomic.Int32
}

// IsOpen reports whether this portal currently owns a listening socket.
func (p *Portal) IsOpen() bool { return p.sock != nil && p.sock.TCP != nil }

// Ref returns the current active-connection count.
func (p *Portal) Ref() int32 { return p.ref.Load() }

// IncRef is called by a front-end when it accepts a connection bound to
// this portal's group.
func (p *Portal) IncRef() int32 { return p.ref.Add(1) }

// DecRef is called by a front-end when it releases a connection.
func (p *Portal) DecRef() int32 { return p.ref.Add(-1) }

func (p *Portal) free() {
	p.Label, p.Host, p.Port = "", "", ""
	p.Tag = FreeTag
}

// Open implements spec §4.5: a no-op if already open, otherwise binds and
// listens via internal/sockutil.
func (p *Portal) Open() error {
	if p.IsOpen() {
		return nil
	}
	l, err := sockutil.Open(p.Host, p.Port)
	if err != nil {
		return err
	}
	p.sock = l
	return nil
}

// Close implements spec §4.5: idempotent.
func (p *Portal) Close() error {
	if !p.IsOpen() {
		return nil
	}
	err := sockutil.Close(p.sock)
	p.sock = nil
	return err
}

// Fd returns the listening socket's raw file descriptor for registration
// with the accept loop's poll set.
func (p *Portal) Fd() (int, bool) {
	if !p.IsOpen() {
		return -1, false
	}
	return sockutil.Fd(p.sock)
}

// Accept accepts one pending connection off this portal's listener.
func (p *Portal) Accept() (net.Conn, error) {
	return sockutil.Accept(p.sock)
}

// PortalGroup is an ordered sequence of Portals sharing an access tag
// (spec §3).
type PortalGroup struct {
	Tag     int
	Idx     int
	Portals []*Portal
	ref     atomic.Int32

	// Generation increments each time this slot is handed a fresh tag
	// (i.e. reused after being freed), per spec §9's generational-handle
	// design note. A Handle captured before reuse can detect staleness by
	// comparing against the current Generation.
	Generation uint64
}

// Free reports whether this slot is reclaimable (spec §3: tag == 0).
func (pg *PortalGroup) Free() bool { return pg.Tag == FreeTag }

// Ref returns the number of sessions currently bound to this group.
func (pg *PortalGroup) Ref() int32 { return pg.ref.Load() }

// IncRef/DecRef are called by the iSCSI front-end as sessions negotiate
// against this PG's tag and later release it.
func (pg *PortalGroup) IncRef() int32 { return pg.ref.Add(1) }
func (pg *PortalGroup) DecRef() int32 { return pg.ref.Add(-1) }

// OpenAll implements spec §4.5's "abort-the-group" rule: on the first
// failure, every sibling opened earlier in this call is closed again
// before the error is returned.
func (pg *PortalGroup) OpenAll() error {
	for i, p := range pg.Portals {
		if err := p.Open(); err != nil {
			for j := 0; j < i; j++ {
				pg.Portals[j].Close()
			}
			return err
		}
	}
	return nil
}

// CloseAll closes every portal in the group; idempotent per-portal.
func (pg *PortalGroup) CloseAll() {
	for _, p := range pg.Portals {
		p.Close()
	}
}

// Handle is a stable, generation-checked reference to a PortalGroup slot
// (spec §9's design note, SPEC_FULL §3 [ADD]).
type Handle struct {
	Index      int
	Generation uint64
}
