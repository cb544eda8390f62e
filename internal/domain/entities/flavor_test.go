package entities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlavor_Classifier(t *testing.T) {
	assert.Equal(t, "bin", FlavorMinimal.Classifier())
	assert.Equal(t, "all", FlavorFull.Classifier())
	assert.Equal(t, "Bin", FlavorMinimal.Title())
	assert.Equal(t, "All", FlavorFull.Title())
}

func TestParseFlavor(t *testing.T) {
	for input, want := range map[string]Flavor{
		"bin":     FlavorMinimal,
		"minimal": FlavorMinimal,
		"ALL":     FlavorFull,
		" full ":  FlavorFull,
	} {
		got, err := ParseFlavor(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFlavor("src")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
