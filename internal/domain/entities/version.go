package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidVersion is returned when a version identifier is not <upstream>-<revision>
var ErrInvalidVersion = errors.New("invalid version")

// VersionSpec is the composite version of a redistribution: the upstream
// tool version plus the local packaging revision
type VersionSpec struct {
	Upstream string
	Revision string
}

// ParseVersionSpec splits "<upstream>-<revision>" at the last dash.
// Both parts must be non-empty.
func ParseVersionSpec(s string) (VersionSpec, error) {
	idx := strings.LastIndex(s, "-")
	if idx <= 0 || idx == len(s)-1 {
		return VersionSpec{}, &ConfigError{
			Msg: fmt.Sprintf("version %q must have the form <upstream>-<revision>", s),
			Err: ErrInvalidVersion,
		}
	}

	return VersionSpec{Upstream: s[:idx], Revision: s[idx+1:]}, nil
}

// String returns the full version identifier
func (v VersionSpec) String() string {
	return v.Upstream + "-" + v.Revision
}

// Tag returns the release tag for this version
func (v VersionSpec) Tag() string {
	return "v" + v.String()
}

// IsZero reports whether the version was never parsed
func (v VersionSpec) IsZero() bool {
	return v.Upstream == "" && v.Revision == ""
}
