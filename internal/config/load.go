package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
)

// File is a loaded configuration: the decoded Document plus the raw bytes
// it came from. Diff compares the decoded Documents, not the raw bytes.
type File struct {
	Path     string
	Document *Document
	raw      []byte
}

// Load reads and decodes an HCL config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, isterrors.Wrap(err, isterrors.KindIoFailed, "read config file")
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes HCL from memory; filename is used only for diagnostics.
func LoadBytes(filename string, data []byte) (*File, error) {
	var doc Document
	if err := hclsimple.Decode(filename, data, nil, &doc); err != nil {
		return nil, isterrors.Wrap(err, isterrors.KindConfigInvalid, "decode config")
	}
	return &File{Path: filename, Document: &doc, raw: data}, nil
}

// Reload re-reads the file at the same path, per spec §4.2's reload flow:
// the daemon always loads a fresh document rather than patching the old
// one in place.
func (f *File) Reload() (*File, error) {
	return Load(f.Path)
}
