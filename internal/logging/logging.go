// Package logging provides the bracket-tagged component loggers used
// throughout the daemon (e.g. "[ACCEPTLOOP] listening on 0.0.0.0:3260").
// This mirrors the house logging style of the codebase this daemon's
// control plane was modeled on: plain stdlib log.Logger with a per-
// component prefix, no structured logging library.
package logging

import (
	"log"
	"os"
	"strings"
)

// WithComponent returns a *log.Logger that prefixes every line with
// "[COMPONENT] " (component is upper-cased).
func WithComponent(component string) *log.Logger {
	tag := "[" + strings.ToUpper(component) + "] "
	return log.New(os.Stderr, tag, log.LstdFlags)
}
