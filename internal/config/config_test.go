package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfbill/surfbill/internal/types"
)

// chdirTemp moves the test into an empty directory so no stray
// config.yaml from the working tree is picked up
func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestNewConfigDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 0.22, cfg.Invoicing.VATRate)
	assert.Equal(t, types.SeriesDefault, cfg.Invoicing.DefaultSeries)
	assert.Equal(t, 4, cfg.Invoicing.NumberPadding)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, 5, cfg.Storage.BackupRetention)
	assert.Equal(t, "RICEVUTA", cfg.PDF.Title)
	assert.Equal(t, types.LogLevelInfo, cfg.Logging.Level)
}

func TestNewConfigEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SURFBILL_INVOICING_NUMBER_PADDING", "6")
	t.Setenv("SURFBILL_STORAGE_DATA_DIR", "/var/lib/surfbill")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Invoicing.NumberPadding)
	assert.Equal(t, "/var/lib/surfbill", cfg.Storage.DataDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"vat rate above one", func(c *Configuration) { c.Invoicing.VATRate = 1.5 }},
		{"empty default series", func(c *Configuration) { c.Invoicing.DefaultSeries = "" }},
		{"zero padding", func(c *Configuration) { c.Invoicing.NumberPadding = 0 }},
		{"empty data dir", func(c *Configuration) { c.Storage.DataDir = "" }},
		{"zero retention", func(c *Configuration) { c.Storage.BackupRetention = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, GetDefaultConfig().Validate())
}
