// Package sockutil implements component E of the core control plane:
// idempotent open/close of a listening TCP socket for a Portal, plus the
// raw-fd handle the accept loop's poll-style multiplexer (component I)
// needs to register a listener for readiness.
package sockutil

import (
	"net"
	"strings"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
)

// Listener is a listening endpoint plus the raw descriptor the accept
// loop polls on. ABSENT is represented by a nil *net.TCPListener.
type Listener struct {
	TCP *net.TCPListener
}

// Open binds and listens on (host, port) and returns the new Listener.
// It always opens a fresh socket; the already-open check (spec §4.5
// idempotence) is done by portal.Portal.Open before calling it.
func Open(host, port string) (*Listener, error) {
	addr := net.JoinHostPort(resolveHost(host), port)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, isterrors.Wrapf(err, isterrors.KindListenFailed, "resolve %s", addr)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, isterrors.Wrapf(err, isterrors.KindListenFailed, "listen %s", addr)
	}
	return &Listener{TCP: ln}, nil
}

// Close is idempotent: closing a nil/already-closed Listener is a no-op.
func Close(l *Listener) error {
	if l == nil || l.TCP == nil {
		return nil
	}
	err := l.TCP.Close()
	l.TCP = nil
	return err
}

// Accept accepts one pending connection. Callers only invoke this after
// the accept loop's poll multiplexer has reported the listener's fd
// readable, so it does not block in practice.
func Accept(l *Listener) (net.Conn, error) {
	if l == nil || l.TCP == nil {
		return nil, isterrors.New(isterrors.KindBadPortal, "accept on closed listener")
	}
	conn, err := l.TCP.Accept()
	if err != nil {
		return nil, isterrors.Wrap(err, isterrors.KindTransient, "accept")
	}
	return conn, nil
}

// Fd returns the raw file descriptor backing the listener, for
// registration with the accept loop's poll set. Returns (-1, false) if
// the listener is absent.
func Fd(l *Listener) (int, bool) {
	if l == nil || l.TCP == nil {
		return -1, false
	}
	rc, err := l.TCP.SyscallConn()
	if err != nil {
		return -1, false
	}
	fd := -1
	if ctrlErr := rc.Control(func(f uintptr) {
		fd = int(f)
	}); ctrlErr != nil {
		return -1, false
	}
	return fd, true
}

// resolveHost turns a Portal's stored textual host (which may be "*", a
// bracketed IPv6 literal, or a plain hostname/IP) into the bare host
// net.JoinHostPort expects.
func resolveHost(host string) string {
	if host == "*" || host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	return host
}
