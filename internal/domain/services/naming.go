// Package services holds pure domain rules: artifact naming, URL construction,
// credential resolution and release readiness.
package services

import (
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ochairo/redist/internal/domain/entities"
)

// File suffixes of derived artifacts
const (
	DigestSuffix    = ".sha256"
	SignatureSuffix = ".asc"
	PackageSuffix   = ".zip"
)

// Workspace-relative directories
const (
	DownloadsDir      = "tmp"
	DistributionsDir  = "distributions"
	ReleaseDir        = "release"
	ReleaseRecordFile = "release.json"
)

// Archive entry modes of injected files
const (
	ExtraFileMode       fs.FileMode = 0644
	ExtraExecutableMode fs.FileMode = 0755
)

// ExtraMode normalizes a local file mode to the mode its archive entry gets:
// executable for any exec bit, plain otherwise
func ExtraMode(mode fs.FileMode) fs.FileMode {
	if mode.Perm()&0111 != 0 {
		return ExtraExecutableMode
	}
	return ExtraFileMode
}

// UpstreamURL expands {name}, {version} and {flavor} in the template
func UpstreamURL(template, tool, upstreamVersion string, flavor entities.Flavor) string {
	u := template
	u = strings.ReplaceAll(u, "{name}", tool)
	u = strings.ReplaceAll(u, "{version}", upstreamVersion)
	u = strings.ReplaceAll(u, "{flavor}", flavor.Classifier())
	return u
}

// DownloadPath is the workspace-relative destination of a fetched archive.
// The file keeps the last path segment of the URL inside a per-flavor
// directory, so templates whose flavor is not in the file name stay apart.
func DownloadPath(dist *entities.Distribution, flavor entities.Flavor) string {
	name := fmt.Sprintf("%s-%s-%s%s", dist.Tool, dist.Version.Upstream, flavor.Classifier(), PackageSuffix)
	if u, err := url.Parse(UpstreamURL(dist.Upstream.URLTemplate, dist.Tool, dist.Version.Upstream, flavor)); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	return filepath.Join(DownloadsDir, dist.Tool, flavor.Classifier(), name)
}

// PackageFileName returns <base>-<upstream>-<revision>-<classifier>.zip
func PackageFileName(dist *entities.Distribution, flavor entities.Flavor) string {
	return fmt.Sprintf("%s-%s-%s%s", dist.BaseName, dist.Version.String(), flavor.Classifier(), PackageSuffix)
}

// PackagePath is the workspace-relative path of a repackaged archive
func PackagePath(dist *entities.Distribution, flavor entities.Flavor) string {
	return filepath.Join(DistributionsDir, PackageFileName(dist, flavor))
}

// DigestPath returns the sibling digest file of a package
func DigestPath(packagePath string) string {
	return packagePath + DigestSuffix
}

// SignaturePath returns the sibling detached signature of a package
func SignaturePath(packagePath string) string {
	return packagePath + SignatureSuffix
}

// ReleaseRecordPath is the workspace-relative location of the persisted release record
func ReleaseRecordPath() string {
	return filepath.Join(ReleaseDir, ReleaseRecordFile)
}

// ExtrasPrefix is the archive directory injected files are placed under
func ExtrasPrefix(dist *entities.Distribution) string {
	return fmt.Sprintf("%s-%s/init.d/", dist.Tool, dist.Version.Upstream)
}

// ReleaseName returns "<product> - v<version>"
func ReleaseName(dist *entities.Distribution) string {
	return fmt.Sprintf("%s - %s", dist.Product, dist.Version.Tag())
}

// ContentType maps an artifact file name to the media type it is uploaded with
func ContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, PackageSuffix):
		return "application/zip"
	case strings.HasSuffix(filename, DigestSuffix):
		return "text/plain"
	case strings.HasSuffix(filename, SignatureSuffix):
		return "application/pgp-signature"
	default:
		return "application/octet-stream"
	}
}

// DirectUploadURL returns <baseURL>/<filename>
func DirectUploadURL(baseURL, filename string) (string, error) {
	u, err := url.JoinPath(baseURL, filename)
	if err != nil {
		return "", fmt.Errorf("invalid publish base URL %q: %w", baseURL, err)
	}
	return u, nil
}

// AssetUploadURL returns <uploadURL>/releases/<id>/assets?name=<filename>
func AssetUploadURL(uploadURL string, releaseID int64, filename string) (string, error) {
	u, err := url.JoinPath(uploadURL, "releases", fmt.Sprint(releaseID), "assets")
	if err != nil {
		return "", fmt.Errorf("invalid upload URL %q: %w", uploadURL, err)
	}
	return u + "?name=" + url.QueryEscape(filename), nil
}

// ReleasesURL returns the endpoint release drafts are posted to
func ReleasesURL(apiURL string) (string, error) {
	u, err := url.JoinPath(apiURL, "releases")
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	return u, nil
}
