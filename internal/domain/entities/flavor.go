package entities

import (
	"fmt"
	"strings"
)

// Flavor identifies which upstream distribution variant is repackaged
type Flavor int

// Supported distribution flavors
const (
	FlavorMinimal Flavor = iota
	FlavorFull
)

// AllFlavors lists every flavor in pipeline order
var AllFlavors = []Flavor{FlavorMinimal, FlavorFull}

// Classifier returns the archive classifier ("bin" or "all")
func (f Flavor) Classifier() string {
	switch f {
	case FlavorFull:
		return "all"
	default:
		return "bin"
	}
}

// Title returns the capitalized classifier used in stage names
func (f Flavor) Title() string {
	switch f {
	case FlavorFull:
		return "All"
	default:
		return "Bin"
	}
}

func (f Flavor) String() string {
	return f.Classifier()
}

// ParseFlavor accepts either the classifier or the descriptive name
func ParseFlavor(s string) (Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bin", "minimal":
		return FlavorMinimal, nil
	case "all", "full":
		return FlavorFull, nil
	default:
		return 0, NewConfigError(fmt.Sprintf("unknown flavor %q (expected bin or all)", s))
	}
}
