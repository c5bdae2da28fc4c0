package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(2), cfg.AdvanceNotice)
	assert.Equal(t, uint32(3), cfg.RegionLength)
	assert.Equal(t, uint64(80), cfg.TimeslicePeriod)
	assert.Equal(t, uint32(10), cfg.RenewalBumpPercent)
	assert.Equal(t, uint32(5), cfg.ContributionTimeout)
	assert.Nil(t, cfg.LimitCoresOffered)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
region_length: 5
leadin_length: 100
renewal_bump_percent: 25
limit_cores_offered: 32
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(5), cfg.RegionLength)
	assert.Equal(t, uint64(100), cfg.LeadinLength)
	assert.Equal(t, uint32(25), cfg.RenewalBumpPercent)
	require.NotNil(t, cfg.LimitCoresOffered)
	assert.Equal(t, uint16(32), *cfg.LimitCoresOffered)

	// Untouched keys keep their defaults.
	assert.Equal(t, uint64(80), cfg.TimeslicePeriod)
	assert.Equal(t, uint32(5), cfg.ContributionTimeout)
}

func TestParse_EmptyDocumentIsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaRejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"zero region length":  "region_length: 0",
		"bump over 100":       "renewal_bump_percent: 150",
		"negative proportion": "ideal_bulk_proportion: -0.5",
		"proportion above 1":  "ideal_bulk_proportion: 1.5",
		"zero period":         "timeslice_period: 0",
		"negative capacity":   "max_leased_cores: -1",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("region_length: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region_length: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.RegionLength)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
