package config

import (
	"encoding/json"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff between two loaded configs, used to log
// what a reload is about to change (spec §4.2's reload announces its
// generation; operators want to see why before it lands).
func Diff(from, to *File) (string, error) {
	fromJSON, err := json.MarshalIndent(from.Document, "", "  ")
	if err != nil {
		return "", err
	}
	toJSON, err := json.MarshalIndent(to.Document, "", "  ")
	if err != nil {
		return "", err
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(fromJSON)),
		B:        difflib.SplitLines(string(toJSON)),
		FromFile: from.Path,
		ToFile:   to.Path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	if text == "" {
		text = "no changes"
	}
	return text, nil
}
