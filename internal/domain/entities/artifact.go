// Package entities defines core domain models and data structures.
package entities

// Role describes what an artifact is within the release pipeline
type Role string

// Artifact roles, one per kind of stage output
const (
	RoleRawDownload   Role = "raw-download"
	RolePackage       Role = "package"
	RoleDigest        Role = "digest"
	RoleSignature     Role = "signature"
	RoleReleaseRecord Role = "release-record"
	RolePublication   Role = "publication"
)

// Artifact is an immutable output of exactly one pipeline stage.
// Path points at a local file; Locations lists remote URLs for publications.
type Artifact struct {
	Name      string
	Version   VersionSpec
	Flavor    Flavor
	Role      Role
	Path      string
	Locations []string
}

// IsLocal reports whether the artifact is backed by a file in the workspace
func (a *Artifact) IsLocal() bool {
	return a != nil && a.Path != ""
}
