package daemon

import (
	"context"
	"net"

	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/section"
)

// fakeISCSIFront/fakeUCTLFront/fakeLUManager are minimal test doubles for
// the three out-call interfaces, recording what they were asked to do.
type fakeISCSIFront struct {
	calls int
}

func (f *fakeISCSIFront) CreateConn(ctx context.Context, d *Daemon, pg *portal.PortalGroup, p *portal.Portal, conn net.Conn) error {
	f.calls++
	return nil
}

type fakeUCTLFront struct {
	calls int
}

func (f *fakeUCTLFront) CreateConn(ctx context.Context, d *Daemon, p *portal.Portal, conn net.Conn) error {
	f.calls++
	return nil
}

type fakeLUManager struct {
	initCfg       section.Config
	threadsCalled bool
	states        []string
	deletedTags   []map[int]bool
	updatedCfgs   []section.Config
	shutdownCalls int
}

func (f *fakeLUManager) Init(cfg section.Config) error {
	f.initCfg = cfg
	return nil
}

func (f *fakeLUManager) CreateThreads() error {
	f.threadsCalled = true
	return nil
}

func (f *fakeLUManager) SetAllState(state string) error {
	f.states = append(f.states, state)
	return nil
}

func (f *fakeLUManager) ReloadDelete(liveTags map[int]bool) error {
	f.deletedTags = append(f.deletedTags, liveTags)
	return nil
}

func (f *fakeLUManager) ReloadUpdate(cfg section.Config) error {
	f.updatedCfgs = append(f.updatedCfgs, cfg)
	return nil
}

func (f *fakeLUManager) Shutdown(ctx context.Context) error {
	f.shutdownCalls++
	return nil
}
