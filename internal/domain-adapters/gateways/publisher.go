package gateways

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/domain/services"
)

// Publisher uploads finished artifacts, one PUT per file, in the given order
type Publisher struct {
	transfer gateways.Transfer
	logger   interfaces.Logger
}

var _ gateways.Publisher = (*Publisher)(nil)

// NewPublisher creates a new publisher
func NewPublisher(transfer gateways.Transfer, logger interfaces.Logger) *Publisher {
	return &Publisher{
		transfer: transfer,
		logger:   interfaces.OrNoOp(logger),
	}
}

// PublishDirect uploads each file to <baseURL>/<filename>
func (p *Publisher) PublishDirect(ctx context.Context, baseURL string, files []string, cred *entities.Credential) ([]string, error) {
	return p.uploadAll(ctx, files, cred, func(filename string) (string, error) {
		return services.DirectUploadURL(baseURL, filename)
	})
}

// UploadAssets attaches each file to the release identified by releaseID
func (p *Publisher) UploadAssets(ctx context.Context, uploadURL string, releaseID int64, files []string, cred *entities.Credential) ([]string, error) {
	if releaseID == 0 {
		return nil, fmt.Errorf("release record has no id")
	}
	return p.uploadAll(ctx, files, cred, func(filename string) (string, error) {
		return services.AssetUploadURL(uploadURL, releaseID, filename)
	})
}

func (p *Publisher) uploadAll(ctx context.Context, files []string, cred *entities.Credential, target func(string) (string, error)) ([]string, error) {
	if err := requireCredential(cred); err != nil {
		return nil, err
	}

	locations := make([]string, 0, len(files))
	for _, file := range files {
		filename := filepath.Base(file)
		url, err := target(filename)
		if err != nil {
			return locations, entities.NewConfigError(err.Error())
		}

		if err := p.transfer.Upload(ctx, url, file, services.ContentType(filename), cred); err != nil {
			return locations, fmt.Errorf("failed to publish %s: %w", filename, err)
		}

		p.logger.Info("published", interfaces.F("file", filename), interfaces.F("url", url))
		locations = append(locations, url)
	}
	return locations, nil
}
