package gateways

import (
	"context"

	"github.com/ochairo/redist/internal/domain/entities"
)

// RepackageRequest describes one repackaging operation
type RepackageRequest struct {
	// Source is the upstream zip archive
	Source string
	// ExtrasDir holds files injected into the archive
	ExtrasDir string
	// Prefix is the archive directory extras are placed under, e.g. "gradle-8.10/init.d/"
	Prefix string
	// Destination is the output archive
	Destination string
}

// DraftRequest describes a release draft
type DraftRequest struct {
	APIURL  string
	TagName string
	Name    string
	// Destination receives the response body verbatim
	Destination string
}

// Fetcher downloads upstream archives
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, cred *entities.Credential) (int64, error)
}

// Packager rebuilds an archive with extra files injected
type Packager interface {
	Repackage(ctx context.Context, req RepackageRequest) (int, error)
}

// Digester writes SHA-256 digest files
type Digester interface {
	WriteDigestFile(filePath, digestPath string) (string, error)
}

// Signer writes detached signatures
type Signer interface {
	Sign(keyFile string, passphrase []byte, src, dest string) error
}

// ReleaseDrafter creates draft releases and reads persisted records back
type ReleaseDrafter interface {
	Draft(ctx context.Context, req DraftRequest, cred *entities.Credential) (*entities.ReleaseRecord, error)
	ReadRecord(path string) (*entities.ReleaseRecord, error)
}

// Publisher uploads artifacts to a remote host
type Publisher interface {
	PublishDirect(ctx context.Context, baseURL string, files []string, cred *entities.Credential) ([]string, error)
	UploadAssets(ctx context.Context, uploadURL string, releaseID int64, files []string, cred *entities.Credential) ([]string, error)
}
