package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/istgtd/internal/igroup"
	"github.com/grimm-is/istgtd/internal/portal"
	"github.com/grimm-is/istgtd/internal/section"
)

const sampleHCL = `
global {
  max_sessions = 32
  initial_r2t  = "Yes"
}

portal_group "1" {
  portal "ag1" "10.0.0.1:3260" {}
}

initiator_group "1" {
  initiator_name = ["iqn.1994-05.com.redhat:client1"]
  netmask        = ["10.0.0.0/24"]
}

unit_control {
  portal "uc0" "127.0.0.1:3261" {}
}
`

func TestLoadBytes_DecodesSections(t *testing.T) {
	f, err := LoadBytes("sample.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	require.Len(t, f.Document.PortalGroups, 1)
	require.Len(t, f.Document.InitiatorGroups, 1)
	require.NotNil(t, f.Document.UnitControl)
	require.NotNil(t, f.Document.Global)

	maxSessions, ok := f.Document.Global.IntVal("MaxSessions")
	require.True(t, ok)
	require.Equal(t, 32, maxSessions)
}

func TestAdapt_FeedsPGTable(t *testing.T) {
	f, err := LoadBytes("sample.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	cfg := Adapt(f.Document)
	secs := cfg.Sections(section.TypePortalGroup)
	require.Len(t, secs, 1)

	tbl := &portal.PGTable{}
	idx, err := tbl.Add(secs[0])
	require.NoError(t, err)
	pg, ok := tbl.GetTagPortal(1)
	require.True(t, ok)
	require.Equal(t, idx, pg.Idx)
	require.Equal(t, "10.0.0.1", pg.Portals[0].Host)
	require.Equal(t, "3260", pg.Portals[0].Port)
}

func TestAdapt_FeedsIGTable(t *testing.T) {
	f, err := LoadBytes("sample.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	cfg := Adapt(f.Document)
	secs := cfg.Sections(section.TypeInitiatorGroup)
	require.Len(t, secs, 1)

	tbl := &igroup.IGTable{}
	_, err = tbl.Add(secs[0])
	require.NoError(t, err)
	ig, ok := tbl.GetTagInitiator(1)
	require.True(t, ok)
	require.Equal(t, []string{"iqn.1994-05.com.redhat:client1"}, ig.Initiators)
	require.Equal(t, []string{"10.0.0.0/24"}, ig.Netmasks)
}

func TestAdapt_UnitControl(t *testing.T) {
	f, err := LoadBytes("sample.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	cfg := Adapt(f.Document)
	secs := cfg.Sections(section.TypeUnitControl)
	require.Len(t, secs, 1)

	set, err := portal.Build(secs[0])
	require.NoError(t, err)
	require.Len(t, set.Portals, 1)
	require.Equal(t, "127.0.0.1", set.Portals[0].Host)
	require.Equal(t, portal.UCTLTag, set.Portals[0].Tag)
}

func TestDiff_NoChanges(t *testing.T) {
	a, err := LoadBytes("a.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	b, err := LoadBytes("b.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	text, err := Diff(a, b)
	require.NoError(t, err)
	require.Equal(t, "no changes", text)
}

func TestDiff_DetectsChange(t *testing.T) {
	a, err := LoadBytes("a.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	changed := `
portal_group "1" {
  portal "ag1" "10.0.0.2:3260" {}
}
`
	b, err := LoadBytes("b.hcl", []byte(changed))
	require.NoError(t, err)

	text, err := Diff(a, b)
	require.NoError(t, err)
	require.NotEqual(t, "no changes", text)
	require.Contains(t, text, "10.0.0")
}
