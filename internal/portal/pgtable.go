package portal

import (
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/limits"
	"github.com/grimm-is/istgtd/internal/section"
)

// PGTable is the indexed store of Portal Groups (component B). It is not
// internally synchronized: callers (internal/daemon) hold the Daemon
// mutex across every method call, per spec §5.
type PGTable struct {
	Groups []*PortalGroup
}

// NPortalGroup returns the published table length (spec §3 nportal_group).
func (t *PGTable) NPortalGroup() int { return len(t.Groups) }

// LiveTags returns the set of tags currently occupying a non-free slot.
func (t *PGTable) LiveTags() map[int]bool {
	live := make(map[int]bool, len(t.Groups))
	for _, pg := range t.Groups {
		if !pg.Free() {
			live[pg.Tag] = true
		}
	}
	return live
}

// GetTagPortal returns the PortalGroup with the given tag, if any.
func (t *PGTable) GetTagPortal(tag int) (*PortalGroup, bool) {
	for _, pg := range t.Groups {
		if !pg.Free() && pg.Tag == tag {
			return pg, true
		}
	}
	return nil, false
}

type portalEntry struct {
	label, host, port string
}

func (t *PGTable) readPortals(sec section.Section) ([]portalEntry, error) {
	count := sec.Count("Portal")
	if count > limits.MaxPortal {
		return nil, isterrors.Errorf(isterrors.KindCapacity, "portal group %d: too many portals (%d > %d)", sec.Num(), count, limits.MaxPortal)
	}
	entries := make([]portalEntry, count)
	for i := 0; i < count; i++ {
		label, _ := sec.NMVal("Portal", i, 0)
		endpoint, _ := sec.NMVal("Portal", i, 1)
		host, port, err := Parse(endpoint)
		if err != nil {
			return nil, err
		}
		entries[i] = portalEntry{label: label, host: host, port: port}
	}
	return entries, nil
}

// Add implements spec §4.2's add(section) -> pg_idx.
func (t *PGTable) Add(sec section.Section) (int, error) {
	entries, err := t.readPortals(sec)
	if err != nil {
		return -1, err
	}

	target := -1
	for i, pg := range t.Groups {
		if pg.Free() && len(pg.Portals) == len(entries) {
			target = i
			break
		}
	}
	if target < 0 {
		if len(t.Groups) >= limits.MaxPortalGroup {
			return -1, isterrors.Errorf(isterrors.KindCapacity, "portal group table full (max %d)", limits.MaxPortalGroup)
		}
		target = len(t.Groups)
		t.Groups = append(t.Groups, &PortalGroup{Idx: target})
	}

	pg := t.Groups[target]
	if len(pg.Portals) != len(entries) {
		pg.Portals = make([]*Portal, len(entries))
		for i := range pg.Portals {
			pg.Portals[i] = &Portal{}
		}
	}
	for i, e := range entries {
		p := pg.Portals[i]
		p.Label, p.Host, p.Port = e.label, e.host, e.port
		p.Idx = i
		p.Tag = sec.Num()
		p.ref.Store(0)
	}
	pg.Tag = sec.Num()
	pg.Idx = target
	pg.Generation++
	pg.ref.Store(0)
	return target, nil
}

// UpdateResult is the outcome of Update (spec §4.2).
type UpdateResult int

const (
	ResultUnchanged UpdateResult = iota
	ResultUpdated
	// ResultSkippedActive means the definition changed but the group has
	// active sessions (ref != 0); spec §4.9 step 3: logged and left alone
	// rather than stalling sessions by rejecting or closing under them.
	ResultSkippedActive
)

// Update implements spec §4.2's update(section, &pg_idx). Per spec §9's
// latent-issue note (a), idx is only meaningful when result == ResultUpdated
// — callers must not read it on ResultUnchanged or error. closeFn is called
// exactly once, right before the slot is mutated, and only when the update
// is actually going ahead (definition changed and no active sessions) — spec
// §4.8 step 3's "close the old listeners, apply the update, and open the new
// listeners", with the close folded into the one place that knows the update
// is really happening.
func (t *PGTable) Update(sec section.Section, closeFn func(*PortalGroup)) (result UpdateResult, idx int, err error) {
	slotIdx := -1
	for i, pg := range t.Groups {
		if !pg.Free() && pg.Tag == sec.Num() {
			slotIdx = i
			break
		}
	}
	if slotIdx < 0 {
		return ResultUnchanged, 0, isterrors.Errorf(isterrors.KindNotFound, "portal group %d not found", sec.Num())
	}

	entries, err := t.readPortals(sec)
	if err != nil {
		return ResultUnchanged, 0, err
	}

	pg := t.Groups[slotIdx]
	if matchAll(pg, entries) {
		return ResultUnchanged, 0, nil
	}
	if pg.Ref() != 0 {
		return ResultSkippedActive, 0, nil
	}

	if closeFn != nil {
		closeFn(pg)
	}

	if len(pg.Portals) == len(entries) {
		for i, e := range entries {
			p := pg.Portals[i]
			p.Label, p.Host, p.Port = e.label, e.host, e.port
		}
		return ResultUpdated, slotIdx, nil
	}

	// Portal count changed: the slot is freed (its listeners already
	// closed above by closeFn) and a fresh/reused slot is allocated via
	// Add, carrying the ref count forward so in-flight sessions aren't
	// lost.
	preservedRef := pg.Ref()
	pg.free()
	newIdx, addErr := t.Add(sec)
	if addErr != nil {
		return ResultUnchanged, 0, addErr
	}
	t.Groups[newIdx].ref.Store(preservedRef)
	return ResultUpdated, newIdx, nil
}

func (pg *PortalGroup) free() {
	pg.Tag = FreeTag
	for _, p := range pg.Portals {
		p.free()
	}
}

func matchAll(pg *PortalGroup, entries []portalEntry) bool {
	if len(pg.Portals) != len(entries) {
		return false
	}
	for i, e := range entries {
		p := pg.Portals[i]
		if p.Label != e.label || p.Host != e.host || p.Port != e.port {
			return false
		}
	}
	return true
}

// DeleteRetired implements spec §4.2's delete_retired(config): every slot
// whose tag is no longer present in liveTags is retired — unless it still
// has active sessions (ref != 0), in which case it is left alone and
// reported via the skipped callback (spec: "log, but do not retire").
// closeFn is called (while still holding the caller's lock) to close the
// group's listeners before the slot is marked free.
func (t *PGTable) DeleteRetired(liveTags map[int]bool, closeFn func(*PortalGroup), skipped func(*PortalGroup)) {
	for _, pg := range t.Groups {
		if pg.Free() || liveTags[pg.Tag] {
			continue
		}
		if pg.Ref() != 0 {
			if skipped != nil {
				skipped(pg)
			}
			continue
		}
		if closeFn != nil {
			closeFn(pg)
		}
		pg.free()
	}
}
