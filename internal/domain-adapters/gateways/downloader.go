package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
)

// ErrEmptyDownload is returned when the remote host answered 2xx with no body
var ErrEmptyDownload = errors.New("downloaded file is empty")

// Downloader fetches upstream archives into the workspace
type Downloader struct {
	transfer gateways.Transfer
	logger   interfaces.Logger
}

var _ gateways.Fetcher = (*Downloader)(nil)

// NewDownloader creates a new downloader
func NewDownloader(transfer gateways.Transfer, logger interfaces.Logger) *Downloader {
	return &Downloader{
		transfer: transfer,
		logger:   interfaces.OrNoOp(logger),
	}
}

// Fetch downloads url into dest with a single GET. On any failure nothing
// is left at dest. cred may be nil for anonymous upstreams.
func (d *Downloader) Fetch(ctx context.Context, url, dest string, cred *entities.Credential) (int64, error) {
	var written int64

	err := AtomicWriteFile(dest, 0644, func(w io.Writer) error {
		n, err := d.transfer.Download(ctx, url, w, cred)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEmptyDownload
		}
		written = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot download %s: %w", url, err)
	}

	d.logger.Info("fetched upstream archive",
		interfaces.F("url", url),
		interfaces.F("file", filepath.Base(dest)),
		interfaces.F("bytes", written))
	return written, nil
}
