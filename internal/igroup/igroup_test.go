package igroup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIGTable_AddLookup(t *testing.T) {
	tbl := &IGTable{}

	idx1, err := tbl.Add(&fakeSection{num: 1, initiators: []string{"iqn.1994-05.com.redhat:client1"}})
	require.NoError(t, err)
	require.Equal(t, 0, idx1)

	ig, ok := tbl.GetTagInitiator(1)
	require.True(t, ok)
	require.Equal(t, []string{"iqn.1994-05.com.redhat:client1"}, ig.Initiators)

	idx2, err := tbl.Add(&fakeSection{num: 2, initiators: []string{"iqn.1994-05.com.redhat:client2"}})
	require.NoError(t, err)
	require.Equal(t, 1, idx2)
}

func TestIGTable_AddAfterCompaction(t *testing.T) {
	tbl := &IGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, initiators: []string{"a"}})
	require.NoError(t, err)
	_, err = tbl.Add(&fakeSection{num: 2, initiators: []string{"b"}})
	require.NoError(t, err)

	tbl.DeleteRetired(map[int]bool{2: true})
	require.Equal(t, 1, tbl.NInitiatorGroup(), "compaction drops the freed slot")

	idx3, err := tbl.Add(&fakeSection{num: 3, initiators: []string{"c"}})
	require.NoError(t, err)
	require.Equal(t, 1, idx3)
}

func TestIGTable_Capacity(t *testing.T) {
	tbl := &IGTable{}
	initiators := make([]string, 17) // > MaxInitiator (16)
	_, err := tbl.Add(&fakeSection{num: 1, initiators: initiators})
	require.Error(t, err)
}

func TestIGTable_UpdateUnchanged(t *testing.T) {
	tbl := &IGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, initiators: []string{"a"}, netmasks: []string{"10.0.0.0/24"}})
	require.NoError(t, err)

	result, _, err := tbl.Update(&fakeSection{num: 1, initiators: []string{"a"}, netmasks: []string{"10.0.0.0/24"}})
	require.NoError(t, err)
	require.Equal(t, ResultUnchanged, result, "matchAll must short-circuit before any free/reallocate")
}

func TestIGTable_UpdateInPlace(t *testing.T) {
	tbl := &IGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, initiators: []string{"a"}})
	require.NoError(t, err)

	result, idx, err := tbl.Update(&fakeSection{num: 1, initiators: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, ResultUpdated, result)
	require.Equal(t, []string{"a", "b"}, tbl.Groups[idx].Initiators)
}

func TestIGTable_UpdateNotFound(t *testing.T) {
	tbl := &IGTable{}
	_, _, err := tbl.Update(&fakeSection{num: 99})
	require.Error(t, err)
}

func TestIGTable_DeleteRetired_Compacts(t *testing.T) {
	tbl := &IGTable{}
	_, err := tbl.Add(&fakeSection{num: 1, initiators: []string{"a"}})
	require.NoError(t, err)
	_, err = tbl.Add(&fakeSection{num: 2, initiators: []string{"b"}})
	require.NoError(t, err)
	_, err = tbl.Add(&fakeSection{num: 3, initiators: []string{"c"}})
	require.NoError(t, err)

	tbl.DeleteRetired(map[int]bool{1: true, 3: true})
	require.Equal(t, 2, tbl.NInitiatorGroup())
	_, ok := tbl.GetTagInitiator(2)
	require.False(t, ok)
	ig3, ok := tbl.GetTagInitiator(3)
	require.True(t, ok)
	require.Equal(t, 1, ig3.Idx, "surviving entries reindex after compaction")
}
