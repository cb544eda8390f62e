package gateways

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/domain/services"
)

// entryModTime is stamped on injected entries so repackaging the same inputs
// yields identical bytes. It is the earliest time a zip header can encode.
var entryModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Packager rebuilds upstream zip archives with extra files injected
type Packager struct {
	logger interfaces.Logger
}

var _ gateways.Packager = (*Packager)(nil)

// NewPackager creates a new packager
func NewPackager(logger interfaces.Logger) *Packager {
	return &Packager{logger: interfaces.OrNoOp(logger)}
}

// Repackage copies every entry of the source archive unchanged and in order,
// then appends the regular files of ExtrasDir in lexical order under Prefix.
// It returns the number of entries written.
func (p *Packager) Repackage(ctx context.Context, req gateways.RepackageRequest) (int, error) {
	extras, err := p.collectExtras(req.ExtrasDir)
	if err != nil {
		return 0, err
	}

	src, err := zip.OpenReader(req.Source)
	if err != nil {
		return 0, fmt.Errorf("failed to open source archive %s: %w", req.Source, err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer src.Close()

	names := make(map[string]bool, len(src.File))
	for _, f := range src.File {
		names[f.Name] = true
	}
	for _, rel := range extras {
		name := path.Join(req.Prefix, rel)
		if names[name] {
			return 0, fmt.Errorf("extra file %s collides with existing archive entry %s", rel, name)
		}
		names[name] = true
	}

	count := 0
	err = AtomicWriteFile(req.Destination, 0644, func(w io.Writer) error {
		zw := zip.NewWriter(w)

		for _, f := range src.File {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("failed to copy entry %s: %w", f.Name, err)
			}
			count++
		}

		for _, rel := range extras {
			if err := p.addExtra(zw, req.ExtrasDir, rel, path.Join(req.Prefix, rel)); err != nil {
				return err
			}
			count++
		}

		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finalize archive: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to repackage %s: %w", filepath.Base(req.Source), err)
	}

	p.logger.Info("repackaged archive",
		interfaces.F("archive", filepath.Base(req.Destination)),
		interfaces.F("entries", count),
		interfaces.F("extras", len(extras)))
	return count, nil
}

// collectExtras returns slash-separated paths relative to dir.
// WalkDir visits entries in lexical order.
func (p *Packager) collectExtras(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("extras directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("extras directory %s is not a directory", dir)
	}

	var extras []string
	err = filepath.WalkDir(dir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, fp)
		if err != nil {
			return err
		}
		extras = append(extras, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk extras directory: %w", err)
	}
	return extras, nil
}

func (p *Packager) addExtra(zw *zip.Writer, dir, rel, name string) error {
	localPath := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryModTime,
	}
	header.SetMode(services.ExtraMode(info.Mode()))

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add entry %s: %w", name, err)
	}

	//nolint:gosec // G304: localPath is inside the configured extras directory
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}
