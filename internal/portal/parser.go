// Package portal implements components A, B and D of the core control
// plane: the portal-text parser, the Portal Group table, and the UCTL
// portal set.
package portal

import (
	"strings"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
)

// DefaultPort is used when a portal's text has no explicit port (spec §4.1).
const DefaultPort = "3260"

// Parse decodes a textual endpoint ("host:port", a bracketed IPv6 literal,
// or a bare host) into (host, port), per spec §4.1. It performs no DNS
// resolution and no numeric range check on the port.
func Parse(text string) (host, port string, err error) {
	if text == "" {
		return "", "", isterrors.New(isterrors.KindBadPortal, "empty portal")
	}

	if text[0] == '[' {
		end := strings.IndexByte(text[1:], ']')
		if end < 0 {
			return "", "", isterrors.New(isterrors.KindBadPortal, "missing closing ']' in "+text)
		}
		end += 1 // index within text, not text[1:]
		host = text[:end+1]
		rest := text[end+1:]
		switch {
		case rest == "":
			port = DefaultPort
		case rest[0] == ':':
			port = rest[1:]
		default:
			return "", "", isterrors.New(isterrors.KindBadPortal, "spurious characters after ']' in "+text)
		}
		return host, port, nil
	}

	if i := strings.IndexByte(text, ':'); i >= 0 {
		return text[:i], text[i+1:], nil
	}
	return text, DefaultPort, nil
}
