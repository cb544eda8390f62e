package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/redist/internal/domain/entities"
)

func TestStore(t *testing.T) {
	workDir := t.TempDir()
	store := NewStore(workDir)

	m, err := store.GetManifest("package-bin")
	require.NoError(t, err)
	assert.Nil(t, m)

	saved := &entities.StageManifest{
		Stage:       "package-bin",
		Fingerprint: "sha256:abc",
		Role:        entities.RolePackage,
		Path:        "/w/distributions/a.zip",
		RecordedAt:  time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveManifest(saved))
	assert.FileExists(t, filepath.Join(workDir, DirName, "package-bin.json"))

	m, err = store.GetManifest("package-bin")
	require.NoError(t, err)
	assert.Equal(t, saved, m)

	require.NoError(t, store.DeleteManifest("package-bin"))
	require.NoError(t, store.DeleteManifest("package-bin"))
	m, err = store.GetManifest("package-bin")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestStore_CorruptManifestIsIgnored(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, DirName), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, DirName, "checksum-all.json"), []byte("{"), 0600))

	m, err := NewStore(workDir).GetManifest("checksum-all")
	require.NoError(t, err)
	assert.Nil(t, m)
}
