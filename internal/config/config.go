// Package config holds the broker's tunable parameters.
//
// A Config is loaded once (from YAML, validated against the embedded CUE
// schema) and is read-only to every other component for the duration of a
// cycle. The Configure operation swaps the whole record; nothing mutates
// it in place.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE []byte

// Config is the broker configuration record.
//
// Durations are in relay blocks unless noted; region_length and
// contribution_timeout are in timeslices. Capacities bound the fixed-size
// lists (reservations, leases, auto-renewals) and are configuration
// constants, never inferred at runtime.
type Config struct {
	// AdvanceNotice is how many blocks ahead of time a timeslice's
	// schedule must be committed to the external scheduler.
	AdvanceNotice uint64 `yaml:"advance_notice"`

	// InterludeLength is the number of blocks between a sale beginning
	// and its lead-in opening for purchases.
	InterludeLength uint64 `yaml:"interlude_length"`

	// LeadinLength is the number of blocks over which the sale price
	// descends from the start price to the end price.
	LeadinLength uint64 `yaml:"leadin_length"`

	// RegionLength is the duration, in timeslices, of the regions sold.
	RegionLength uint32 `yaml:"region_length"`

	// TimeslicePeriod is the number of relay blocks per timeslice.
	TimeslicePeriod uint64 `yaml:"timeslice_period"`

	// IdealBulkProportion is the fraction of cores-offered whose sale
	// counts as the ideal outcome; it feeds the ideal_cores_sold figure
	// in the sale-initialized notification.
	IdealBulkProportion float64 `yaml:"ideal_bulk_proportion"`

	// LimitCoresOffered caps the cores offered per sale when set.
	LimitCoresOffered *uint16 `yaml:"limit_cores_offered,omitempty"`

	// RenewalBumpPercent is the percentage added to the recorded price
	// each time a commitment is renewed.
	RenewalBumpPercent uint32 `yaml:"renewal_bump_percent"`

	// ContributionTimeout is how many timeslices after a record's span
	// ends before it may be dropped.
	ContributionTimeout uint32 `yaml:"contribution_timeout"`

	// MaxReservedCores bounds the reservations list.
	MaxReservedCores int `yaml:"max_reserved_cores"`

	// MaxLeasedCores bounds the leases list.
	MaxLeasedCores int `yaml:"max_leased_cores"`

	// MaxAutoRenewals bounds the auto-renewal intents list.
	MaxAutoRenewals int `yaml:"max_auto_renewals"`

	// MinimumCreditPurchase is the smallest accepted credit purchase.
	MinimumCreditPurchase uint64 `yaml:"minimum_credit_purchase"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		AdvanceNotice:         2,
		InterludeLength:       1,
		LeadinLength:          1,
		RegionLength:          3,
		TimeslicePeriod:       80,
		IdealBulkProportion:   0,
		RenewalBumpPercent:    10,
		ContributionTimeout:   5,
		MaxReservedCores:      10,
		MaxLeasedCores:        10,
		MaxAutoRenewals:       20,
		MinimumCreditPurchase: 1,
	}
}

// Load reads a YAML config file, validates it against the CUE schema, and
// decodes it over the defaults (absent keys keep their default values).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes YAML config bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.RegionLength == 0 {
		return fmt.Errorf("config: region_length must be positive")
	}
	if c.TimeslicePeriod == 0 {
		return fmt.Errorf("config: timeslice_period must be positive")
	}
	if c.IdealBulkProportion < 0 || c.IdealBulkProportion > 1 {
		return fmt.Errorf("config: ideal_bulk_proportion must be within [0, 1]")
	}
	if c.MaxReservedCores <= 0 || c.MaxLeasedCores <= 0 || c.MaxAutoRenewals <= 0 {
		return fmt.Errorf("config: list capacities must be positive")
	}
	return nil
}

// validateAgainstSchema unifies the raw document with the embedded CUE
// schema. Schema violations carry CUE's field-level positions, which beat
// anything a hand-rolled checker would report.
func validateAgainstSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup config schema: %w", err)
	}

	unified := def.Unify(ctx.Encode(doc))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
