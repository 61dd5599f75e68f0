package signalthread

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/istgtd/internal/daemon"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/reload"
	"github.com/grimm-is/istgtd/internal/section"
)

type fakeISCSIFront struct{}

func (fakeISCSIFront) CreateConn(context.Context, *daemon.Daemon, *portal.PortalGroup, *portal.Portal, net.Conn) error {
	return nil
}

type fakeUCTLFront struct{}

func (fakeUCTLFront) CreateConn(context.Context, *daemon.Daemon, *portal.Portal, net.Conn) error {
	return nil
}

type fakeLUManager struct{}

func (fakeLUManager) Init(section.Config) error                  { return nil }
func (fakeLUManager) CreateThreads() error                       { return nil }
func (fakeLUManager) SetAllState(string) error                   { return nil }
func (fakeLUManager) ReloadDelete(map[int]bool) error            { return nil }
func (fakeLUManager) ReloadUpdate(section.Config) error          { return nil }
func (fakeLUManager) Shutdown(context.Context) error              { return nil }

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	t.Setenv("ISTGTD_PIDFILE", filepath.Join(t.TempDir(), "istgtd.pid"))

	cfgPath := filepath.Join(t.TempDir(), "istgt.conf")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
global {
  max_sessions = 8
  initial_r2t  = "Yes"
}
`), 0o644))

	d, err := daemon.New(cfgPath, fakeISCSIFront{}, fakeUCTLFront{}, fakeLUManager{})
	require.NoError(t, err)
	return d
}

func TestRun_USR1USR2TogglesTrace(t *testing.T) {
	d := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, d)

	require.False(t, TraceEnabled())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))
	require.Eventually(t, TraceEnabled, time.Second, 10*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, func() bool { return !TraceEnabled() }, time.Second, 10*time.Millisecond)
}

func TestRun_TERMRequestsExit(t *testing.T) {
	d := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, d)

	received := make(chan reload.Command, 1)
	go func() {
		req := <-d.ReloadChannel().Requests()
		received <- req.Cmd
		req.Complete(nil)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case cmd := <-received:
		require.Equal(t, reload.CmdExit, cmd)
	case <-time.After(time.Second):
		t.Fatal("SIGTERM did not submit CmdExit")
	}
}
