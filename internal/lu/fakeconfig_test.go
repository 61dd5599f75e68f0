package lu

import "github.com/grimm-is/istgtd/internal/section"

// fakeLUSection is a minimal in-memory section.Section for a LogicalUnit
// block.
type fakeLUSection struct {
	num                       int
	path, size, authGroup string
}

func (s *fakeLUSection) Type() section.Type { return section.TypeLogicalUnit }
func (s *fakeLUSection) Num() int           { return s.num }
func (s *fakeLUSection) Count(string) int   { return 1 }

func (s *fakeLUSection) NVal(key string, idx int) (string, bool) {
	if idx != 0 {
		return "", false
	}
	switch key {
	case "Path":
		return s.path, s.path != ""
	case "Size":
		return s.size, s.size != ""
	case "AuthGroup":
		return s.authGroup, s.authGroup != ""
	}
	return "", false
}

func (s *fakeLUSection) NMVal(string, int, int) (string, bool) { return "", false }

// fakeConfig is a minimal in-memory section.Config exposing only
// LogicalUnit sections.
type fakeConfig struct {
	units []*fakeLUSection
}

func (c *fakeConfig) Sections(t section.Type) []section.Section {
	if t != section.TypeLogicalUnit {
		return nil
	}
	out := make([]section.Section, len(c.units))
	for i, u := range c.units {
		out[i] = u
	}
	return out
}
