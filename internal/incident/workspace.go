package incident

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace stages the active incident's code on disk so viewers can fetch
// the exact file the agents are talking about.
type Workspace struct {
	Dir string
}

// WriteBuggy writes the incident's broken code under the workspace dir.
// Incidents without a code payload are a no-op.
func (w Workspace) WriteBuggy(inc *Incident) error {
	return w.write(inc.FileName, inc.BuggyCode)
}

// WriteFixed overwrites the staged file with the fixed code.
func (w Workspace) WriteFixed(inc *Incident) error {
	return w.write(inc.FileName, inc.FixedCode)
}

// Read returns the currently staged contents for the incident's file.
func (w Workspace) Read(inc *Incident) (string, error) {
	path, err := w.path(inc.FileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w Workspace) write(name, content string) error {
	if name == "" || content == "" {
		return nil
	}
	path, err := w.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create code dir: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (w Workspace) path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid incident file name: %q", name)
	}
	return filepath.Join(w.Dir, clean), nil
}
