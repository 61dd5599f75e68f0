package uctlfront

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/istgtd/internal/daemon"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/section"
)

type fakeISCSIFront struct{}

func (fakeISCSIFront) CreateConn(context.Context, *daemon.Daemon, *portal.PortalGroup, *portal.Portal, net.Conn) error {
	return nil
}

type fakeLUManager struct{}

func (fakeLUManager) Init(section.Config) error        { return nil }
func (fakeLUManager) CreateThreads() error              { return nil }
func (fakeLUManager) SetAllState(string) error          { return nil }
func (fakeLUManager) ReloadDelete(map[int]bool) error   { return nil }
func (fakeLUManager) ReloadUpdate(section.Config) error { return nil }
func (fakeLUManager) Shutdown(context.Context) error    { return nil }

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	t.Setenv("ISTGTD_PIDFILE", filepath.Join(t.TempDir(), "istgtd.pid"))

	cfgPath := filepath.Join(t.TempDir(), "istgt.conf")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
global {
  max_sessions = 8
  initial_r2t  = "Yes"
}

portal_group "1" {
  portal "ag1" "127.0.0.1:0" {}
}
`), 0o644))

	d, err := daemon.New(cfgPath, fakeISCSIFront{}, New(), fakeLUManager{})
	require.NoError(t, err)
	return d
}

func TestCreateConn_StatusAndQuit(t *testing.T) {
	d := newTestDaemon(t)

	client, server := net.Pipe()
	defer client.Close()

	p := &portal.Portal{Tag: portal.UCTLTag}
	p.IncRef()

	f := New()
	require.NoError(t, f.CreateConn(context.Background(), d, p, server))

	reader := bufio.NewReader(client)

	_, err := client.Write([]byte("STATUS\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "state=Initialized")

	_, err = client.Write([]byte("PG\n"))
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "OK")
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "pg=1")

	_, err = client.Write([]byte("QUIT\n"))
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "bye")

	require.Eventually(t, func() bool { return p.Ref() == 0 }, time.Second, 10*time.Millisecond)
}
