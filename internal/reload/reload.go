// Package reload implements the reload protocol (component H): a
// serialized handoff between an external initiator (typically the signal
// thread, on HUP) and the accept loop.
//
// The source this is adapted from used a control pipe plus a condition
// variable; spec §9 suggests the idiomatic replacement is a bounded
// channel carrying a command variant with a one-shot completion object,
// which is what Channel implements. The accept loop selects between
// readiness on its listeners and Channel.Requests(); Submit is the
// initiator-side synchronous call that blocks until the accept loop has
// applied the command (the loop then rebuilds its readiness set before it
// accepts again; spec §4.8 step 4).
package reload

import (
	"context"
)

// Command mirrors the three control-byte values the original protocol's
// 5-byte frames carried ('E', 'D', 'U').
type Command int

const (
	// CmdExit asks the accept loop to break out of its poll loop.
	CmdExit Command = iota
	// CmdDelete asks the accept loop to retire PGs no longer present in
	// the new config and rebuild its readiness set.
	CmdDelete
	// CmdUpdate asks the accept loop to add/update PGs from the new
	// config and rebuild its readiness set.
	CmdUpdate
)

func (c Command) String() string {
	switch c {
	case CmdExit:
		return "Exit"
	case CmdDelete:
		return "Delete"
	case CmdUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// Request is one command in flight, together with its one-shot
// completion channel (the channel replacement for pg_reload + the
// condition variable).
type Request struct {
	Cmd Command
	// Payload carries the new config (a section.Config) for Delete/Update
	// commands; nil for Exit. Typed as any to keep this package free of
	// a dependency on internal/section.
	Payload any
	done    chan error
}

// Complete signals the request's outcome. The accept loop calls this
// exactly once per request, after it has applied the command and before
// it rebuilds its readiness set; it accepts nothing until that rebuild,
// so the initiator never observes completion before the edit is live
// (spec §4.8's ordering guarantee).
func (r Request) Complete(err error) {
	r.done <- err
}

// Channel is the reload handoff. Zero value is not usable; use New.
type Channel struct {
	reqs chan Request

	// submitSlot is a one-slot semaphore that keeps at most one command in
	// flight, held for the full round trip, not just the send. A Submit
	// waiting for the slot still honors its ctx. The "at most one reload
	// in progress" invariant across a whole multi-command reload is the
	// daemon's own reloadMu.
	submitSlot chan struct{}
}

// New creates a reload Channel. The request channel is unbuffered: a
// Submit blocks until the accept loop is ready to receive, matching the
// original's synchronous handoff.
func New() *Channel {
	return &Channel{reqs: make(chan Request), submitSlot: make(chan struct{}, 1)}
}

// Requests returns the channel the accept loop selects on alongside its
// listener readiness.
func (c *Channel) Requests() <-chan Request {
	return c.reqs
}

// Submit sends cmd (with an optional payload) to the accept loop and
// blocks until it completes or ctx is done. Only one Submit can be in
// flight at a time.
func (c *Channel) Submit(ctx context.Context, cmd Command, payload any) error {
	select {
	case c.submitSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.submitSlot }()

	req := Request{Cmd: cmd, Payload: payload, done: make(chan error, 1)}

	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
