package portal

import (
	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/limits"
	"github.com/grimm-is/istgtd/internal/section"
)

// UCTLSet is the fixed set of management listeners (component D). It is
// built once at init from the UnitControl section and never reconfigured
// at runtime (spec §4.4).
type UCTLSet struct {
	Portals []*Portal
}

// Build populates the UCTL set from a UnitControl section. All UCTL
// portals carry the UCTLTag sentinel.
func Build(sec section.Section) (*UCTLSet, error) {
	count := sec.Count("Portal")
	if count > limits.MaxUCPortal {
		return nil, isterrors.Errorf(isterrors.KindCapacity, "too many UCTL portals (%d > %d)", count, limits.MaxUCPortal)
	}
	set := &UCTLSet{Portals: make([]*Portal, count)}
	for i := 0; i < count; i++ {
		label, _ := sec.NMVal("Portal", i, 0)
		endpoint, _ := sec.NMVal("Portal", i, 1)
		host, port, err := Parse(endpoint)
		if err != nil {
			return nil, err
		}
		set.Portals[i] = &Portal{
			Label: label,
			Host:  host,
			Port:  port,
			Tag:   UCTLTag,
			Idx:   i,
		}
	}
	return set, nil
}

// OpenAll opens every UCTL portal, abort-the-group on the first failure
// (spec §4.5), same contract as PortalGroup.OpenAll.
func (s *UCTLSet) OpenAll() error {
	for i, p := range s.Portals {
		if err := p.Open(); err != nil {
			for j := 0; j < i; j++ {
				s.Portals[j].Close()
			}
			return err
		}
	}
	return nil
}

// CloseAll closes every UCTL portal; idempotent per-portal.
func (s *UCTLSet) CloseAll() {
	for _, p := range s.Portals {
		p.Close()
	}
}
