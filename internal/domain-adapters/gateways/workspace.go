package gateways

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/lockedfile"
)

const lockFileName = ".redist.lock"

// Workspace confines every stage output to one working directory
type Workspace struct {
	root string
}

// NewWorkspace creates the working directory if needed
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute working directory
func (w *Workspace) Root() string {
	return w.root
}

// Path resolves rel inside the workspace. Paths escaping the root through
// ".." or symlinks are clamped to it.
func (w *Workspace) Path(rel string) (string, error) {
	p, err := securejoin.SecureJoin(w.root, rel)
	if err != nil {
		return "", fmt.Errorf("invalid workspace path %s: %w", rel, err)
	}
	return p, nil
}

// Lock takes an exclusive inter-process lock on the workspace
func (w *Workspace) Lock() (unlock func(), err error) {
	mutex := lockedfile.MutexAt(filepath.Join(w.root, lockFileName))
	unlock, err = mutex.Lock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock working directory %s: %w", w.root, err)
	}
	return unlock, nil
}

// AtomicWriteFile writes to a temporary sibling of path and renames it into
// place, so path either holds the complete content or is left untouched.
func AtomicWriteFile(path string, mode os.FileMode, write func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tf, err := os.CreateTemp(filepath.Split(path))
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tfName := tf.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tfName)
		}
	}()

	if err := write(tf); err != nil {
		_ = tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tfName, err)
	}
	if err := os.Chmod(tfName, mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tfName, err)
	}
	if err := os.Rename(tfName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// AtomicWriteBytes is AtomicWriteFile for in-memory content
func AtomicWriteBytes(path string, data []byte, mode os.FileMode) error {
	return AtomicWriteFile(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
