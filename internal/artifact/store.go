package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a filesystem key/value store for document artifacts, addressed
// by sanitized decision identifier. Writes to distinct identifiers never
// contend; same-identifier writes are the caller's responsibility to
// serialize.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Path returns the on-disk location for an identifier without touching the
// filesystem.
func (s *Store) Path(id string, ext string) string {
	return filepath.Join(s.Root, SanitizeID(id)+ext)
}

func (s *Store) Exists(id string, ext string) bool {
	info, err := os.Stat(s.Path(id, ext))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) Read(id string, ext string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(id, ext))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	return data, nil
}

// Write stores artifact bytes under the identifier. The write goes through
// a temp file and rename so concurrent readers never observe a partial
// artifact.
func (s *Store) Write(id string, ext string, content []byte) (string, error) {
	dest := s.Path(id, ext)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write artifact %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename artifact %s: %w", id, err)
	}
	return dest, nil
}

// CopyFrom copies an existing file into the store under the identifier.
func (s *Store) CopyFrom(id string, ext string, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}
	return s.Write(id, ext, data)
}

// SanitizeID maps an identifier to a filesystem-safe name. ECLI strings
// contain colons and case numbers contain slashes, neither of which can
// appear in a file name.
func SanitizeID(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return replacer.Replace(id)
}
