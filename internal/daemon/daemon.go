// Package daemon implements the global config/state component (F) and
// the lifecycle driver (J): the Daemon struct that owns the PG/IG
// tables, the UCTL portal set, the tunables, the reload channel, and the
// five-state lifecycle (spec §4.10).
package daemon

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grimm-is/istgtd/internal/config"
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/igroup"
	"github.com/grimm-is/istgtd/internal/install"
	"github.com/grimm-is/istgtd/internal/logging"
	"github.com/grimm-is/istgtd/internal/metrics"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/reload"
	"github.com/grimm-is/istgtd/internal/section"
)

// ShutdownDrainAttempts/Interval implement spec §4.10's "up to 10 x
// 1-second retries wait for active connection count to reach zero".
const (
	ShutdownDrainAttempts = 10
	ShutdownDrainInterval = time.Second
)

// Daemon is the process-wide control plane (spec §3's Daemon entity).
type Daemon struct {
	mu       sync.RWMutex // the Daemon mutex (spec §5): guards pgTable/igTable/uctl/tunables
	stateMu  sync.RWMutex
	state    State
	generation uint64 // written only under stateMu; read via Generation()

	pgTable  *portal.PGTable
	igTable  *igroup.IGTable
	uctl     *portal.UCTLSet
	tunables Tunables

	cfgPath string
	lastCfg *config.File // most recently loaded config, kept for reload diffing

	reloadCh *reload.Channel
	// reloadMu enforces "at most one reload in progress" across the
	// whole two-phase exchange, not just one Submit (spec §3 invariant;
	// spec §5's ordering rule — acquired after mu is released).
	reloadMu sync.Mutex

	metrics *metrics.Metrics
	logger  *log.Logger

	iscsi ISCSIFront
	uctlF UCTLFront
	lu    LUManager

	pidFile     string
	activeConns atomic.Int32
}

// New performs the Invalid -> Initialized transition (spec §4.10): parse
// the config file, build the PG/IG tables, UCTL set, and tunables, and
// validate the tunables. No listener is open and no goroutine besides
// the caller exists yet.
func New(cfgPath string, iscsi ISCSIFront, uctlF UCTLFront, lu LUManager) (*Daemon, error) {
	f, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg := config.Adapt(f.Document)

	d := &Daemon{
		pgTable:  &portal.PGTable{},
		igTable:  &igroup.IGTable{},
		cfgPath:  cfgPath,
		reloadCh: reload.New(),
		metrics:  metrics.New(),
		logger:   logging.WithComponent("daemon"),
		iscsi:    iscsi,
		uctlF:    uctlF,
		lu:       lu,
		pidFile:  install.GetPidFile(),
		state:    StateInvalid,
	}

	if err := d.loadInitial(cfg); err != nil {
		return nil, err
	}
	d.lastCfg = f

	d.state = StateInitialized
	return d, nil
}

func (d *Daemon) loadInitial(cfg section.Config) error {
	globalSecs := cfg.Sections(section.TypeGlobal)
	var t Tunables
	var err error
	if len(globalSecs) > 0 {
		t, err = LoadTunables(globalSecs[0])
	} else {
		t, err = LoadTunables(emptySection{})
	}
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	d.tunables = t

	for _, sec := range cfg.Sections(section.TypePortalGroup) {
		if _, err := d.pgTable.Add(sec); err != nil {
			return err
		}
	}
	for _, sec := range cfg.Sections(section.TypeInitiatorGroup) {
		if _, err := d.igTable.Add(sec); err != nil {
			return err
		}
	}

	ucSecs := cfg.Sections(section.TypeUnitControl)
	if len(ucSecs) > 0 {
		set, err := portal.Build(ucSecs[0])
		if err != nil {
			return err
		}
		d.uctl = set
	} else {
		d.uctl = &portal.UCTLSet{}
	}

	if err := d.lu.Init(cfg); err != nil {
		return err
	}

	return nil
}

// emptySection is the Global section stand-in when the config omits one
// entirely — every key falls back to its default (spec §4.6).
type emptySection struct{}

func (emptySection) Type() section.Type                         { return section.TypeGlobal }
func (emptySection) Num() int                                    { return 0 }
func (emptySection) Count(string) int                            { return 0 }
func (emptySection) NVal(string, int) (string, bool)             { return "", false }
func (emptySection) NMVal(string, int, int) (string, bool)        { return "", false }

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state
}

func (d *Daemon) setState(s State) {
	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

// Generation returns the current reload generation counter.
func (d *Daemon) Generation() uint64 {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.generation
}

// PGTable/IGTable/UCTLSet/Metrics/Tunables/ReloadChannel are accessors
// for the accept loop, signal thread, and UCTL front-end — all of which
// live in other packages and must never reach into Daemon's private
// fields directly.
func (d *Daemon) PGTable() *portal.PGTable      { return d.pgTable }
func (d *Daemon) IGTable() *igroup.IGTable      { return d.igTable }
func (d *Daemon) UCTLSet() *portal.UCTLSet      { return d.uctl }
func (d *Daemon) Metrics() *metrics.Metrics     { return d.metrics }
func (d *Daemon) Tunables() Tunables            { return d.tunables }
func (d *Daemon) ReloadChannel() *reload.Channel { return d.reloadCh }
func (d *Daemon) Logger() *log.Logger           { return d.logger }

// DispatchISCSI hands an accepted connection off to the iSCSI front-end
// (spec §6 create_iscsi_conn), tracking the PG's ref count across the
// call so a concurrent reload never sees a stale zero.
func (d *Daemon) DispatchISCSI(ctx context.Context, pg *portal.PortalGroup, p *portal.Portal, conn net.Conn) error {
	pg.IncRef()
	p.IncRef()
	d.AddActiveConns(1)
	err := d.iscsi.CreateConn(ctx, d, pg, p, conn)
	if err != nil {
		pg.DecRef()
		p.DecRef()
		d.AddActiveConns(-1)
	}
	return err
}

// DispatchUCTL hands an accepted connection off to the UCTL front-end
// (spec §6 create_uctl_conn).
func (d *Daemon) DispatchUCTL(ctx context.Context, p *portal.Portal, conn net.Conn) error {
	p.IncRef()
	d.AddActiveConns(1)
	err := d.uctlF.CreateConn(ctx, d, p, conn)
	if err != nil {
		p.DecRef()
		d.AddActiveConns(-1)
	}
	return err
}

// Lock/RLock/Unlock/RUnlock expose the Daemon mutex (spec §5) for
// components that must hold it across a multi-step table operation —
// chiefly internal/acceptloop when it rebuilds its descriptor set, and
// internal/uctlfront when it lists the tables.
func (d *Daemon) Lock()    { d.mu.Lock() }
func (d *Daemon) Unlock()  { d.mu.Unlock() }
func (d *Daemon) RLock()   { d.mu.RLock() }
func (d *Daemon) RUnlock() { d.mu.RUnlock() }

// Run performs Initialized -> Running -> Exiting -> Shutdown (spec
// §4.10). accept is the accept-loop function; it is handed the Daemon
// and runs until the reload channel delivers CmdExit or ctx is canceled,
// then Run drains connections and tears everything down.
func (d *Daemon) Run(ctx context.Context, accept func(context.Context, *Daemon) error) error {
	if d.State() != StateInitialized {
		return isterrors.Errorf(isterrors.KindFatal, "Run called from state %s, want Initialized", d.State())
	}

	d.mu.Lock()
	if err := d.lu.CreateThreads(); err != nil {
		d.mu.Unlock()
		return err
	}
	if err := d.lu.SetAllState("Running"); err != nil {
		d.mu.Unlock()
		return err
	}
	if err := d.uctl.OpenAll(); err != nil {
		d.mu.Unlock()
		return err
	}
	for _, pg := range d.pgTable.Groups {
		if pg.Free() {
			continue
		}
		if err := pg.OpenAll(); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	d.mu.Unlock()

	if err := d.writePidFile(); err != nil {
		return err
	}

	d.setState(StateRunning)

	runErr := accept(ctx, d)

	d.setState(StateExiting)
	if d.lu != nil {
		_ = d.lu.SetAllState("Exiting")
	}

	d.drainConnections()

	d.mu.Lock()
	for _, pg := range d.pgTable.Groups {
		pg.CloseAll()
	}
	d.uctl.CloseAll()
	d.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownDrainAttempts*ShutdownDrainInterval)
	defer cancel()
	_ = d.lu.Shutdown(shutdownCtx)

	d.removePidFile()
	d.setState(StateShutdown)

	return runErr
}

// ActiveConns returns the current accepted-connection count used by the
// shutdown drain loop; front-ends increment/decrement it via
// AddActiveConns as they accept/release connections.
func (d *Daemon) ActiveConns() int32 {
	return d.activeConns.Load()
}

// AddActiveConns adjusts the active connection counter; delta is +1 on
// accept, -1 on release.
func (d *Daemon) AddActiveConns(delta int32) int32 {
	return d.activeConns.Add(delta)
}

func (d *Daemon) drainConnections() {
	for i := 0; i < ShutdownDrainAttempts; i++ {
		if d.ActiveConns() == 0 {
			return
		}
		time.Sleep(ShutdownDrainInterval)
	}
	d.logger.Printf("shutdown proceeding with %d active connection(s) still open", d.ActiveConns())
}

func (d *Daemon) writePidFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (d *Daemon) removePidFile() {
	_ = os.Remove(d.pidFile)
}
