package config

import (
	"strconv"

	"github.com/grimm-is/istgtd/internal/section"
)

// adaptedConfig implements section.Config over a decoded Document.
type adaptedConfig struct {
	doc *Document
}

// Adapt wraps a decoded Document as a section.Config for the core
// packages (internal/portal, internal/igroup, internal/daemon).
func Adapt(doc *Document) section.Config {
	return &adaptedConfig{doc: doc}
}

func (c *adaptedConfig) Sections(t section.Type) []section.Section {
	switch t {
	case section.TypePortalGroup:
		out := make([]section.Section, len(c.doc.PortalGroups))
		for i := range c.doc.PortalGroups {
			out[i] = &pgSection{b: &c.doc.PortalGroups[i]}
		}
		return out
	case section.TypeInitiatorGroup:
		out := make([]section.Section, len(c.doc.InitiatorGroups))
		for i := range c.doc.InitiatorGroups {
			out[i] = &igSection{b: &c.doc.InitiatorGroups[i]}
		}
		return out
	case section.TypeUnitControl:
		if c.doc.UnitControl == nil {
			return nil
		}
		return []section.Section{&ucSection{b: c.doc.UnitControl}}
	case section.TypeLogicalUnit:
		out := make([]section.Section, len(c.doc.LogicalUnits))
		for i := range c.doc.LogicalUnits {
			out[i] = &luSection{b: &c.doc.LogicalUnits[i]}
		}
		return out
	case section.TypeAuthGroup:
		out := make([]section.Section, len(c.doc.AuthGroups))
		for i := range c.doc.AuthGroups {
			out[i] = &agSection{b: &c.doc.AuthGroups[i]}
		}
		return out
	case section.TypeGlobal:
		if c.doc.Global == nil {
			return nil
		}
		return []section.Section{&globalSection{b: c.doc.Global}}
	}
	return nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// pgSection adapts a PortalGroupBlock.
type pgSection struct{ b *PortalGroupBlock }

func (s *pgSection) Type() section.Type { return section.TypePortalGroup }
func (s *pgSection) Num() int           { return atoiOr(s.b.Tag, 0) }
func (s *pgSection) Count(key string) int {
	if key == "Portal" {
		return len(s.b.Portals)
	}
	return 0
}
func (s *pgSection) NVal(key string, idx int) (string, bool) { return "", false }
func (s *pgSection) NMVal(key string, idx, col int) (string, bool) {
	if key != "Portal" || idx < 0 || idx >= len(s.b.Portals) {
		return "", false
	}
	switch col {
	case 0:
		return s.b.Portals[idx].Label, true
	case 1:
		return s.b.Portals[idx].Endpoint, true
	}
	return "", false
}

// igSection adapts an InitiatorGroupBlock.
type igSection struct{ b *InitiatorGroupBlock }

func (s *igSection) Type() section.Type { return section.TypeInitiatorGroup }
func (s *igSection) Num() int           { return atoiOr(s.b.Tag, 0) }
func (s *igSection) Count(key string) int {
	switch key {
	case "InitiatorName":
		return len(s.b.Initiators)
	case "Netmask":
		return len(s.b.Netmasks)
	}
	return 0
}
func (s *igSection) NVal(key string, idx int) (string, bool) {
	var list []string
	switch key {
	case "InitiatorName":
		list = s.b.Initiators
	case "Netmask":
		list = s.b.Netmasks
	default:
		return "", false
	}
	if idx < 0 || idx >= len(list) {
		return "", false
	}
	return list[idx], true
}
func (s *igSection) NMVal(key string, idx, col int) (string, bool) { return "", false }

// ucSection adapts the singleton UnitControlBlock.
type ucSection struct{ b *UnitControlBlock }

func (s *ucSection) Type() section.Type { return section.TypeUnitControl }
func (s *ucSection) Num() int           { return 0 }
func (s *ucSection) Count(key string) int {
	if key == "Portal" {
		return len(s.b.Portals)
	}
	return 0
}
func (s *ucSection) NVal(key string, idx int) (string, bool) { return "", false }
func (s *ucSection) NMVal(key string, idx, col int) (string, bool) {
	if key != "Portal" || idx < 0 || idx >= len(s.b.Portals) {
		return "", false
	}
	switch col {
	case 0:
		return s.b.Portals[idx].Label, true
	case 1:
		return s.b.Portals[idx].Endpoint, true
	}
	return "", false
}

// luSection adapts a LogicalUnitBlock for the lu.Manager stub.
type luSection struct{ b *LogicalUnitBlock }

func (s *luSection) Type() section.Type { return section.TypeLogicalUnit }
func (s *luSection) Num() int           { return atoiOr(s.b.Tag, 0) }
func (s *luSection) Count(key string) int {
	switch key {
	case "Path", "Size", "AuthGroup":
		return 1
	}
	return 0
}
func (s *luSection) NVal(key string, idx int) (string, bool) {
	if idx != 0 {
		return "", false
	}
	switch key {
	case "Path":
		return s.b.Path, s.b.Path != ""
	case "Size":
		return s.b.Size, s.b.Size != ""
	case "AuthGroup":
		return s.b.AuthGroup, s.b.AuthGroup != ""
	}
	return "", false
}
func (s *luSection) NMVal(key string, idx, col int) (string, bool) { return "", false }

// agSection adapts an AuthGroupBlock for the CHAP external collaborator.
type agSection struct{ b *AuthGroupBlock }

func (s *agSection) Type() section.Type { return section.TypeAuthGroup }
func (s *agSection) Num() int           { return atoiOr(s.b.Tag, 0) }
func (s *agSection) Count(key string) int {
	switch key {
	case "Auth":
		if len(s.b.Users) < len(s.b.Secrets) {
			return len(s.b.Users)
		}
		return len(s.b.Secrets)
	case "Mutual":
		return len(s.b.Mutual)
	}
	return 0
}
func (s *agSection) NVal(key string, idx int) (string, bool) {
	if key == "Mutual" {
		if idx < 0 || idx >= len(s.b.Mutual) {
			return "", false
		}
		return s.b.Mutual[idx], true
	}
	return "", false
}
func (s *agSection) NMVal(key string, idx, col int) (string, bool) {
	if key != "Auth" || idx < 0 || idx >= len(s.b.Users) || idx >= len(s.b.Secrets) {
		return "", false
	}
	switch col {
	case 0:
		return s.b.Users[idx], true
	case 1:
		return s.b.Secrets[idx], true
	}
	return "", false
}

// globalSection adapts the singleton GlobalBlock for Tunables.Load.
type globalSection struct{ b *GlobalBlock }

func (s *globalSection) Type() section.Type   { return section.TypeGlobal }
func (s *globalSection) Num() int             { return 0 }
func (s *globalSection) Count(key string) int { return 0 }
func (s *globalSection) NVal(key string, idx int) (string, bool) {
	if idx != 0 {
		return "", false
	}
	if n, ok := s.b.IntVal(key); ok {
		return strconv.Itoa(n), true
	}
	switch key {
	case "NodeBase":
		return s.b.NodeBase, s.b.NodeBase != ""
	case "InitialR2T":
		return s.b.InitialR2T, s.b.InitialR2T != ""
	case "ImmediateData":
		return s.b.ImmediateData, s.b.ImmediateData != ""
	case "DataPDUInOrder":
		return s.b.DataPDUInOrder, s.b.DataPDUInOrder != ""
	case "DataSequenceInOrder":
		return s.b.DataSequenceInOrder, s.b.DataSequenceInOrder != ""
	case "DiscoveryAuthMethod":
		return s.b.DiscoveryAuthMethod, s.b.DiscoveryAuthMethod != ""
	case "DiscoveryAuthGroup":
		return s.b.DiscoveryAuthGroup, s.b.DiscoveryAuthGroup != ""
	}
	return "", false
}
func (s *globalSection) NMVal(key string, idx, col int) (string, bool) { return "", false }

// IntVal reads one of the *int tunable fields by name, returning ok=false
// when the config left it unset (the caller then applies the default).
func (b *GlobalBlock) IntVal(key string) (int, bool) {
	var p *int
	switch key {
	case "MaxSessions":
		p = b.MaxSessions
	case "MaxConnections":
		p = b.MaxConnections
	case "MaxOutstandingR2T":
		p = b.MaxOutstandingR2T
	case "DefaultTime2Wait":
		p = b.DefaultTime2Wait
	case "DefaultTime2Retain":
		p = b.DefaultTime2Retain
	case "FirstBurstLength":
		p = b.FirstBurstLength
	case "MaxBurstLength":
		p = b.MaxBurstLength
	case "MaxRecvDataSegmentLength":
		p = b.MaxRecvDataSegmentLength
	case "ErrorRecoveryLevel":
		p = b.ErrorRecoveryLevel
	case "Timeout":
		p = b.Timeout
	case "NopInInterval":
		p = b.NopInInterval
	case "MaxR2T":
		p = b.MaxR2T
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}
