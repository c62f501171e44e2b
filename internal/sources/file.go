package sources

import (
	"crypto/sha256"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// FileSource serves gateway configuration from a snapshot document on disk.
// The document is read once, when the source is created.
type FileSource struct {
	*StaticSource

	path string
	hash string
}

// NewFileSource loads a YAML or JSON snapshot from path
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	// #nosec G304 -- path comes from operator supplied configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshot Snapshot
	if err := yaml.UnmarshalStrict(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", path, err)
	}

	return &FileSource{
		StaticSource: NewStaticSource(&snapshot),
		path:         path,
		hash:         fmt.Sprintf("%x", sha256.Sum256(data)),
	}, nil
}

// Path returns the file the snapshot was loaded from
func (f *FileSource) Path() string {
	return f.path
}

// Hash returns the SHA256 of the snapshot document
func (f *FileSource) Hash() string {
	return f.hash
}
