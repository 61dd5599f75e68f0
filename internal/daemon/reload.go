package daemon

import (
	"context"

	"github.com/grimm-is/istgtd/internal/config"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/reload"
	"github.com/grimm-is/istgtd/internal/section"
)

func tagSetFromSections(secs []section.Section) map[int]bool {
	out := make(map[int]bool, len(secs))
	for _, s := range secs {
		out[s.Num()] = true
	}
	return out
}

// Reload implements spec §4.8. It is always called from outside the
// accept loop (the signal thread, on HUP) and blocks until the accept
// loop has applied the PG delete/update it services via the reload
// channel. A validation failure returns before anything is mutated, so
// the daemon keeps running on the prior configuration (spec §4.6).
func (d *Daemon) Reload(ctx context.Context) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	f, err := config.Load(d.cfgPath)
	if err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	cfg := config.Adapt(f.Document)

	globalSecs := cfg.Sections(section.TypeGlobal)
	var newTunables Tunables
	if len(globalSecs) > 0 {
		newTunables, err = LoadTunables(globalSecs[0])
	} else {
		newTunables, err = LoadTunables(emptySection{})
	}
	if err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := newTunables.Validate(); err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	if diffText, diffErr := config.Diff(d.lastCfg, f); diffErr == nil {
		d.logger.Printf("reload: %s", diffText)
	}

	luLive := tagSetFromSections(cfg.Sections(section.TypeLogicalUnit))
	igLive := tagSetFromSections(cfg.Sections(section.TypeInitiatorGroup))

	// Step 2, in order: LU-delete, IG-delete, PG-delete, PG-update,
	// IG-update, LU-update. Only PG changes round-trip through the
	// accept loop; IG and LU mutate in place under the Daemon mutex.
	if err := d.lu.ReloadDelete(luLive); err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	d.mu.Lock()
	d.igTable.DeleteRetired(igLive)
	d.mu.Unlock()

	if err := d.reloadCh.Submit(ctx, reload.CmdDelete, cfg); err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := d.reloadCh.Submit(ctx, reload.CmdUpdate, cfg); err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	d.mu.Lock()
	for _, sec := range cfg.Sections(section.TypeInitiatorGroup) {
		if _, ok := d.igTable.GetTagInitiator(sec.Num()); ok {
			if _, _, updErr := d.igTable.Update(sec); updErr != nil {
				d.logger.Printf("initiator group %d: update failed: %v", sec.Num(), updErr)
			}
			continue
		}
		if _, addErr := d.igTable.Add(sec); addErr != nil {
			d.logger.Printf("initiator group %d: add failed: %v", sec.Num(), addErr)
		}
	}
	d.mu.Unlock()

	if err := d.lu.ReloadUpdate(cfg); err != nil {
		d.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	d.mu.Lock()
	d.tunables = newTunables
	d.lastCfg = f
	d.mu.Unlock()

	d.stateMu.Lock()
	d.generation++
	gen := d.generation
	d.stateMu.Unlock()

	d.metrics.Generation.Set(float64(gen))
	d.metrics.ReloadsTotal.WithLabelValues("success").Inc()
	return nil
}

// ApplyPGDelete services a CmdDelete request from the accept loop:
// retire PGs whose tags no longer appear in cfg, closing their
// listeners, unless they still have active sessions (spec §4.9 step 3).
func (d *Daemon) ApplyPGDelete(cfg section.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := tagSetFromSections(cfg.Sections(section.TypePortalGroup))
	d.pgTable.DeleteRetired(live,
		func(pg *portal.PortalGroup) { pg.CloseAll() },
		func(pg *portal.PortalGroup) {
			d.logger.Printf("portal group %d retired but has %d active session(s); left open", pg.Tag, pg.Ref())
		},
	)
}

// ApplyPGUpdate services a CmdUpdate request from the accept loop: add
// new PGs (opening listeners) and apply in-place/resized updates to
// existing ones, per spec §4.9 step 3.
func (d *Daemon) ApplyPGUpdate(cfg section.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sec := range cfg.Sections(section.TypePortalGroup) {
		if _, ok := d.pgTable.GetTagPortal(sec.Num()); ok {
			// Update closes the old listeners itself (via closeFn) right
			// before it mutates the slot — and only once it has confirmed
			// the definition actually changed and the group is idle — so
			// an unchanged or still-active group is never interrupted.
			result, idx, err := d.pgTable.Update(sec, func(pg *portal.PortalGroup) { pg.CloseAll() })
			if err != nil {
				d.logger.Printf("portal group %d: update failed: %v", sec.Num(), err)
				continue
			}
			switch result {
			case portal.ResultUpdated:
				if openErr := d.pgTable.Groups[idx].OpenAll(); openErr != nil {
					d.logger.Printf("portal group %d: reopen failed: %v", sec.Num(), openErr)
				}
			case portal.ResultSkippedActive:
				d.logger.Printf("portal group %d changed but has active sessions; left alone", sec.Num())
			}
			continue
		}

		idx, err := d.pgTable.Add(sec)
		if err != nil {
			d.logger.Printf("portal group %d: add failed: %v", sec.Num(), err)
			continue
		}
		if openErr := d.pgTable.Groups[idx].OpenAll(); openErr != nil {
			d.logger.Printf("portal group %d: open failed: %v", sec.Num(), openErr)
		}
	}
}
