// Package lu implements the minimal in-memory logical-unit registry that
// stands in for the SCSI LU subsystem (spec §1 non-goal, §6's lu_init/
// lu_create_threads/lu_set_all_state/lu_reload_delete/lu_reload_update/
// lu_shutdown call shape). It tracks per-LU state and owns one worker
// goroutine per unit, but performs no real backing-store I/O — that
// belongs to the external collaborator the spec names out of scope.
package lu

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/section"
)

// FreeTag marks an unused registry slot.
const FreeTag = 0

// Unit is one logical unit's bookkeeping: the config fields the spec's
// LogicalUnit block carries, plus the worker goroutine's lifecycle.
type Unit struct {
	Tag       int
	Path      string
	Size      string
	AuthGroup string
	State     string

	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry is the LUManager implementation handed to daemon.New.
type Registry struct {
	mu    sync.Mutex
	units []*Unit
	log   *log.Logger
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{log: logging.WithComponent("lu")}
}

func (r *Registry) get(tag int) (*Unit, bool) {
	for _, u := range r.units {
		if u.Tag == tag {
			return u, true
		}
	}
	return nil, false
}

func fieldsOf(sec section.Section) (path, size, authGroup string) {
	path, _ = sec.NVal("Path", 0)
	size, _ = sec.NVal("Size", 0)
	authGroup, _ = sec.NVal("AuthGroup", 0)
	return
}

// Init implements lu_init: populate the registry from the config's
// LogicalUnit sections. Called once, before any worker is started.
func (r *Registry) Init(cfg section.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sec := range cfg.Sections(section.TypeLogicalUnit) {
		if sec.Num() == FreeTag {
			return isterrors.Errorf(isterrors.KindConfigInvalid, "logical unit tag %d is reserved", FreeTag)
		}
		path, size, authGroup := fieldsOf(sec)
		r.units = append(r.units, &Unit{
			Tag:       sec.Num(),
			Path:      path,
			Size:      size,
			AuthGroup: authGroup,
			State:     "Initialized",
			id:        uuid.New(),
		})
	}
	return nil
}

// CreateThreads implements lu_create_threads: start one worker goroutine
// per unit. The worker does nothing but wait for cancellation — a stand-in
// for the SCSI command-processing loop the real LU subsystem would run.
func (r *Registry) CreateThreads() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.units {
		if u.cancel != nil {
			continue // already running
		}
		ctx, cancel := context.WithCancel(context.Background())
		u.cancel = cancel
		u.done = make(chan struct{})
		go r.runWorker(ctx, u)
	}
	return nil
}

func (r *Registry) runWorker(ctx context.Context, u *Unit) {
	defer close(u.done)
	r.log.Printf("logical unit %d (%s) worker started, id=%s", u.Tag, u.Path, u.id)
	<-ctx.Done()
	r.log.Printf("logical unit %d worker stopped", u.Tag)
}

// SetAllState implements lu_set_all_state: transition every unit's
// published state string (e.g. "Running", "Exiting").
func (r *Registry) SetAllState(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		u.State = state
	}
	return nil
}

// ReloadDelete implements lu_reload_delete: stop and drop every unit
// whose tag is not present in liveTags.
func (r *Registry) ReloadDelete(liveTags map[int]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	surviving := r.units[:0]
	for _, u := range r.units {
		if liveTags[u.Tag] {
			surviving = append(surviving, u)
			continue
		}
		if u.cancel != nil {
			u.cancel()
		}
		r.log.Printf("logical unit %d retired", u.Tag)
	}
	r.units = surviving
	return nil
}

// ReloadUpdate implements lu_reload_update: add newly-configured units
// (starting their worker immediately so they match the running set) and
// refresh the fields of existing ones in place.
func (r *Registry) ReloadUpdate(cfg section.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sec := range cfg.Sections(section.TypeLogicalUnit) {
		path, size, authGroup := fieldsOf(sec)
		if u, ok := r.get(sec.Num()); ok {
			u.Path, u.Size, u.AuthGroup = path, size, authGroup
			continue
		}
		u := &Unit{
			Tag:       sec.Num(),
			Path:      path,
			Size:      size,
			AuthGroup: authGroup,
			State:     "Running",
			id:        uuid.New(),
		}
		ctx, cancel := context.WithCancel(context.Background())
		u.cancel = cancel
		u.done = make(chan struct{})
		r.units = append(r.units, u)
		go r.runWorker(ctx, u)
	}
	return nil
}

// Shutdown implements lu_shutdown: cancel every worker and wait for it to
// exit, or for ctx to expire first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	units := append([]*Unit(nil), r.units...)
	r.mu.Unlock()

	for _, u := range units {
		if u.cancel != nil {
			u.cancel()
		}
	}
	for _, u := range units {
		if u.done == nil {
			continue
		}
		select {
		case <-u.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
