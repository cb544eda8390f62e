package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/domain/services"
)

// GitHubAPIVersion is sent with every release API call
const GitHubAPIVersion = "2022-11-28"

// draftPayload is the body of a release creation request
type draftPayload struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Draft   bool   `json:"draft"`
}

// ReleaseDrafter creates draft releases on a GitHub-compatible API
type ReleaseDrafter struct {
	transfer gateways.Transfer
	logger   interfaces.Logger
}

var _ gateways.ReleaseDrafter = (*ReleaseDrafter)(nil)

// NewReleaseDrafter creates a new release drafter
func NewReleaseDrafter(transfer gateways.Transfer, logger interfaces.Logger) *ReleaseDrafter {
	return &ReleaseDrafter{
		transfer: transfer,
		logger:   interfaces.OrNoOp(logger),
	}
}

// Draft creates a draft release and persists the response. The response must
// describe a release with a non-zero id.
func (d *ReleaseDrafter) Draft(ctx context.Context, req gateways.DraftRequest, cred *entities.Credential) (*entities.ReleaseRecord, error) {
	if err := requireCredential(cred); err != nil {
		return nil, err
	}

	url, err := services.ReleasesURL(req.APIURL)
	if err != nil {
		return nil, entities.NewConfigError(err.Error())
	}

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": GitHubAPIVersion,
	}
	body, err := d.transfer.PostJSON(ctx, url, draftPayload{
		TagName: req.TagName,
		Name:    req.Name,
		Draft:   true,
	}, headers, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", req.TagName, err)
	}

	record, err := DecodeReleaseRecord(body)
	if err != nil {
		return nil, err
	}

	if err := AtomicWriteBytes(req.Destination, body, 0644); err != nil {
		return nil, fmt.Errorf("failed to persist release record: %w", err)
	}

	d.logger.Info("drafted release",
		interfaces.F("tag", record.TagName),
		interfaces.F("id", record.ID))
	return record, nil
}

// ReadRecord loads the release record persisted by Draft
func (d *ReleaseDrafter) ReadRecord(path string) (*entities.ReleaseRecord, error) {
	return ReadReleaseRecord(path)
}

// DecodeReleaseRecord parses a release API response
func DecodeReleaseRecord(data []byte) (*entities.ReleaseRecord, error) {
	var record entities.ReleaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode release record: %w", err)
	}
	if record.ID == 0 {
		return nil, fmt.Errorf("release record has no id")
	}
	return &record, nil
}

// ReadReleaseRecord loads a persisted release record
func ReadReleaseRecord(path string) (*entities.ReleaseRecord, error) {
	//nolint:gosec // G304: path is the workspace release record
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read release record: %w", err)
	}
	return DecodeReleaseRecord(data)
}

// requireCredential fails before any request is made when no secret is available
func requireCredential(cred *entities.Credential) error {
	if cred == nil {
		return entities.NewConfigError("no credential available for remote host")
	}
	if cred.Secret == "" {
		return entities.MissingVariableError(cred.Variable)
	}
	return nil
}
