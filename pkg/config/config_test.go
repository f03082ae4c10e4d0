package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restock/pkg/fingerprint"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAssetsPrice, cfg.AssetsPrice)
	assert.Equal(t, DefaultSleepEachUpload, cfg.SleepEachUpload)
	assert.InDelta(t, DefaultMaxNudityValue, cfg.MaxNudityValue, 1e-9)
	assert.Equal(t, "file", cfg.Ledger.Backend)
	assert.NotEmpty(t, cfg.Ledger.Path)
	assert.True(t, cfg.IsDupeCheckEnabled(), "duplicate checking is on unless disabled")
	assert.NotNil(t, cfg.Destinations)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := &Config{
		Destinations: map[string]DestinationConfig{
			"123": {Cookie: "secret", CorpusDir: "/tmp/corpus"},
		},
		AssetsPrice: 7,
		Description: "hello",
	}
	dupe := false
	cfg.DupeCheck = &dupe
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Destinations["123"].Cookie)
	assert.Equal(t, "/tmp/corpus", loaded.Destinations["123"].CorpusDir)
	assert.Equal(t, 7, loaded.AssetsPrice)
	assert.False(t, loaded.IsDupeCheckEnabled())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "config holds credentials")
}

func TestThresholdOverrides(t *testing.T) {
	cfg := &Config{
		DuplicateDetection: DuplicateDetectionConfig{
			Thresholds: map[string]int{"phash": 7},
		},
	}

	thresholds, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, 7, thresholds[fingerprint.Phash])
	assert.Equal(t, 5, thresholds[fingerprint.Ahash], "unset algorithms keep their defaults")
}

func TestThresholdUnknownAlgorithm(t *testing.T) {
	cfg := &Config{
		DuplicateDetection: DuplicateDetectionConfig{
			Thresholds: map[string]int{"md5": 3},
		},
	}
	_, err := cfg.Thresholds()
	assert.Error(t, err)
}
