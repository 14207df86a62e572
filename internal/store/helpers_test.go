package store_test

import (
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/partscout/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Backend: "file", Dir: filepath.Join(t.TempDir(), "jobs")},
	}
}
