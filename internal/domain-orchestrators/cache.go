package orchestrators

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/ochairo/redist/internal/domain/services"
)

// Fingerprint accumulates everything a cached output depends on
type Fingerprint struct {
	digester digest.Digester
	err      error
}

// NewFingerprint starts a fingerprint
func NewFingerprint() *Fingerprint {
	return &Fingerprint{digester: digest.Canonical.Digester()}
}

// Param adds a named parameter
func (f *Fingerprint) Param(key, value string) *Fingerprint {
	f.write(key, "=", value, "\n")
	return f
}

// File adds the content digest of a file
func (f *Fingerprint) File(key, path string) *Fingerprint {
	if f.err != nil {
		return f
	}
	d, err := fileDigest(path)
	if err != nil {
		f.err = err
		return f
	}
	return f.Param(key, d.String())
}

// Dir adds the relative path, archive entry mode and content digest of every
// regular file below dir
func (f *Fingerprint) Dir(key, dir string) *Fingerprint {
	if f.err != nil {
		return f
	}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fd, err := fileDigest(p)
		if err != nil {
			return err
		}
		mode := services.ExtraMode(info.Mode())
		f.Param(key+"/"+filepath.ToSlash(rel), fmt.Sprintf("%04o:%s", mode, fd))
		return nil
	})
	if err != nil {
		f.err = errors.Wrapf(err, "unable to fingerprint %s", dir)
	}
	return f
}

// Sum returns the fingerprint, or the first error hit while building it
func (f *Fingerprint) Sum() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.digester.Digest().String(), nil
}

func (f *Fingerprint) write(parts ...string) {
	if f.err != nil {
		return
	}
	if _, err := f.digester.Hash().Write([]byte(strings.Join(parts, ""))); err != nil {
		f.err = err
	}
}

func fileDigest(path string) (digest.Digest, error) {
	//nolint:gosec // G304: path is a pipeline artifact inside the workspace
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to open input")
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	d, err := digest.Canonical.FromReader(file)
	if err != nil {
		return "", errors.Wrapf(err, "unable to digest %s", path)
	}
	return d, nil
}
