// Package igroup implements component C: the Initiator Group table.
// Symmetric to internal/portal's PG table but simpler — IGs own no
// sockets, so updates always free-and-reallocate, and delete compacts
// the table (nothing holds an IG by index, only by tag; spec §4.3).
package igroup

import (
	"sync/atomic"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/limits"
	"github.com/grimm-is/istgtd/internal/section"
)

// FreeTag marks a reclaimable IG slot.
const FreeTag = 0

// InitiatorGroup is an ACL: a set of initiator-name patterns and netmask
// patterns (spec §3). Matching semantics are the iSCSI front-end's job;
// this package only stores the patterns.
type InitiatorGroup struct {
	Tag        int
	Idx        int
	Initiators []string
	Netmasks   []string

	ref atomic.Int32
}

func (ig *InitiatorGroup) Free() bool  { return ig.Tag == FreeTag }
func (ig *InitiatorGroup) Ref() int32  { return ig.ref.Load() }
func (ig *InitiatorGroup) IncRef() int32 { return ig.ref.Add(1) }
func (ig *InitiatorGroup) DecRef() int32 { return ig.ref.Add(-1) }

// IGTable is the indexed store of Initiator Groups. Like PGTable, it is
// not internally synchronized — callers hold the Daemon mutex.
type IGTable struct {
	Groups []*InitiatorGroup
}

func (t *IGTable) NInitiatorGroup() int { return len(t.Groups) }

// LiveTags returns the set of tags currently occupying a non-free slot.
func (t *IGTable) LiveTags() map[int]bool {
	live := make(map[int]bool, len(t.Groups))
	for _, ig := range t.Groups {
		if !ig.Free() {
			live[ig.Tag] = true
		}
	}
	return live
}

func (t *IGTable) GetTagInitiator(tag int) (*InitiatorGroup, bool) {
	for _, ig := range t.Groups {
		if !ig.Free() && ig.Tag == tag {
			return ig, true
		}
	}
	return nil, false
}

func readPatterns(sec section.Section, key string, max int) ([]string, error) {
	count := sec.Count(key)
	if count > max {
		return nil, isterrors.Errorf(isterrors.KindCapacity, "initiator group %d: too many %s entries (%d > %d)", sec.Num(), key, count, max)
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		v, _ := sec.NVal(key, i)
		out[i] = v
	}
	return out, nil
}

// Add implements spec §4.3's add.
func (t *IGTable) Add(sec section.Section) (int, error) {
	initiators, err := readPatterns(sec, "InitiatorName", limits.MaxInitiator)
	if err != nil {
		return -1, err
	}
	netmasks, err := readPatterns(sec, "Netmask", limits.MaxNetmask)
	if err != nil {
		return -1, err
	}

	target := -1
	for i, ig := range t.Groups {
		if ig.Free() {
			target = i
			break
		}
	}
	if target < 0 {
		if len(t.Groups) >= limits.MaxInitiatorGroup {
			return -1, isterrors.Errorf(isterrors.KindCapacity, "initiator group table full (max %d)", limits.MaxInitiatorGroup)
		}
		target = len(t.Groups)
		t.Groups = append(t.Groups, &InitiatorGroup{Idx: target})
	}

	ig := t.Groups[target]
	ig.Tag = sec.Num()
	ig.Idx = target
	ig.Initiators = initiators
	ig.Netmasks = netmasks
	ig.ref.Store(0)
	return target, nil
}

func matchAll(ig *InitiatorGroup, initiators, netmasks []string) bool {
	if len(ig.Initiators) != len(initiators) || len(ig.Netmasks) != len(netmasks) {
		return false
	}
	for i := range initiators {
		if ig.Initiators[i] != initiators[i] {
			return false
		}
	}
	for i := range netmasks {
		if ig.Netmasks[i] != netmasks[i] {
			return false
		}
	}
	return true
}

// UpdateResult mirrors internal/portal.UpdateResult.
type UpdateResult int

const (
	ResultUnchanged UpdateResult = iota
	ResultUpdated
)

// Update implements spec §4.3: content unchanged is a no-op (checked via
// matchAll — per spec §9 latent-issue note (b), this check is load-bearing:
// without it every reload would free-and-reallocate even unchanged IGs).
// Otherwise the slot is overwritten in place (no listeners to preserve, so
// unlike PGTable.Update there is no need to migrate to a fresh slot).
func (t *IGTable) Update(sec section.Section) (result UpdateResult, idx int, err error) {
	slotIdx := -1
	for i, ig := range t.Groups {
		if !ig.Free() && ig.Tag == sec.Num() {
			slotIdx = i
			break
		}
	}
	if slotIdx < 0 {
		return ResultUnchanged, 0, isterrors.Errorf(isterrors.KindNotFound, "initiator group %d not found", sec.Num())
	}

	initiators, err := readPatterns(sec, "InitiatorName", limits.MaxInitiator)
	if err != nil {
		return ResultUnchanged, 0, err
	}
	netmasks, err := readPatterns(sec, "Netmask", limits.MaxNetmask)
	if err != nil {
		return ResultUnchanged, 0, err
	}

	ig := t.Groups[slotIdx]
	if matchAll(ig, initiators, netmasks) {
		return ResultUnchanged, 0, nil
	}

	ig.Initiators = initiators
	ig.Netmasks = netmasks
	return ResultUpdated, slotIdx, nil
}

// DeleteRetired removes every slot whose tag is not present in liveTags,
// compacting the table (spec §4.3: IGs are referenced only by tag, so
// indices are free to shift on delete, unlike the PG table).
func (t *IGTable) DeleteRetired(liveTags map[int]bool) {
	surviving := t.Groups[:0]
	for _, ig := range t.Groups {
		if !ig.Free() && !liveTags[ig.Tag] {
			continue // dropped
		}
		ig.Idx = len(surviving)
		surviving = append(surviving, ig)
	}
	t.Groups = surviving
}
