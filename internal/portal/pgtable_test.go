package portal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S2 — Add/Lookup.
func TestPGTable_AddLookup(t *testing.T) {
	tbl := &PGTable{}

	idx1, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)
	require.Equal(t, 0, idx1)
	require.Equal(t, 1, tbl.NPortalGroup())

	pg, ok := tbl.GetTagPortal(1)
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", pg.Portals[0].Host)

	idx2, err := tbl.Add(&fakeSection{num: 2, portals: [][2]string{{"l1", "10.0.0.2:3260"}}})
	require.NoError(t, err)
	require.Equal(t, 1, idx2)
	require.Equal(t, 2, tbl.NPortalGroup())
}

// S3 — slot reuse after delete.
func TestPGTable_SlotReuse(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)
	_, err = tbl.Add(&fakeSection{num: 2, portals: [][2]string{{"l1", "10.0.0.2:3260"}}})
	require.NoError(t, err)

	// Delete PG1: tag -> 0, no active sessions.
	tbl.DeleteRetired(map[int]bool{2: true}, nil, nil)
	pg1, ok := tbl.GetTagPortal(1)
	require.False(t, ok)
	require.True(t, tbl.Groups[0].Free())

	idx3, err := tbl.Add(&fakeSection{num: 3, portals: [][2]string{{"x", "10.0.0.9:3260"}}})
	require.NoError(t, err)
	require.Equal(t, 0, idx3, "should reuse freed slot 0")
	require.Equal(t, 2, tbl.NPortalGroup(), "table length must not grow")
	_ = pg1
}

func TestPGTable_Capacity(t *testing.T) {
	tbl := &PGTable{}
	portals := make([][2]string, 9) // > MAX_PORTAL (8)
	for i := range portals {
		portals[i] = [2]string{"l", "10.0.0.1:3260"}
	}
	_, err := tbl.Add(&fakeSection{num: 1, portals: portals})
	require.Error(t, err)
}

func TestPGTable_UpdateUnchanged(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)

	closed := false
	result, idx, err := tbl.Update(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}}, func(pg *PortalGroup) { closed = true })
	require.NoError(t, err)
	require.Equal(t, ResultUnchanged, result)
	require.False(t, closed, "closeFn must not run when nothing changed")
	_ = idx // must not be consulted on Unchanged, per spec §9 latent-issue note (a)
}

func TestPGTable_UpdateInPlace(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)

	closed := false
	result, idx, err := tbl.Update(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.2:3260"}}}, func(pg *PortalGroup) { closed = true })
	require.NoError(t, err)
	require.Equal(t, ResultUpdated, result)
	require.Equal(t, "10.0.0.2", tbl.Groups[idx].Portals[0].Host)
	require.True(t, closed, "closeFn must run before an in-place update mutates the slot")
}

func TestPGTable_UpdateResize(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)

	closed := false
	result, idx, err := tbl.Update(&fakeSection{num: 1, portals: [][2]string{
		{"l1", "10.0.0.1:3260"}, {"l2", "10.0.0.1:3261"},
	}}, func(pg *PortalGroup) { closed = true })
	require.NoError(t, err)
	require.Equal(t, ResultUpdated, result)
	require.Len(t, tbl.Groups[idx].Portals, 2)
	require.EqualValues(t, 0, tbl.Groups[idx].Ref(), "ref must carry forward across resize")
	require.True(t, closed, "closeFn must run before a resize frees the old slot")
}

// Spec §4.9 step 3: a PG with active sessions whose content changed is
// logged and left alone rather than stalling those sessions.
func TestPGTable_UpdateSkipsActive(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)
	tbl.Groups[0].IncRef()

	closed := false
	result, _, err := tbl.Update(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.2:3260"}}}, func(pg *PortalGroup) { closed = true })
	require.NoError(t, err)
	require.Equal(t, ResultSkippedActive, result)
	require.Equal(t, "10.0.0.1", tbl.Groups[0].Portals[0].Host, "content must not change while ref != 0")
	require.False(t, closed, "closeFn must not run for a group with active sessions")
}

func TestPGTable_UpdateNotFound(t *testing.T) {
	tbl := &PGTable{}
	_, _, err := tbl.Update(&fakeSection{num: 99}, nil)
	require.Error(t, err)
}

func TestPGTable_DeleteRetired_SkipsActive(t *testing.T) {
	tbl := &PGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, portals: [][2]string{{"l1", "10.0.0.1:3260"}}})
	require.NoError(t, err)
	tbl.Groups[0].IncRef()

	skippedCalled := false
	tbl.DeleteRetired(map[int]bool{}, nil, func(pg *PortalGroup) { skippedCalled = true })
	require.True(t, skippedCalled)
	require.False(t, tbl.Groups[0].Free(), "PG with active ref must not be retired")
}
