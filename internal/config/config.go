// Package config loads the host-side YAML configuration and resolves
// it into the opaque config object the pipeline consumes. Only the host
// touches files; the verification core never reads config, files or
// environment on its own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/engines"
	"github.com/docgate/docgate/internal/pipeline"
	"github.com/docgate/docgate/internal/rules"
	"github.com/docgate/docgate/internal/verdict"
)

// FileConfig is the on-disk YAML shape. Pointer fields distinguish
// "absent, use default" from explicit zero values.
type FileConfig struct {
	MaxTotalBytes *int64 `yaml:"max_total_bytes"`
	MaxEntries    *int   `yaml:"max_entries"`
	MaxEntryBytes *int64 `yaml:"max_entry_bytes"`

	RunTimeout  *string `yaml:"run_timeout"`
	PartTimeout *string `yaml:"part_timeout"`

	RuleFile *string `yaml:"rule_file"`

	PartAllowlist    []string `yaml:"part_allowlist"`
	AuthorAllowlist  []string `yaml:"author_allowlist"`
	CompanyAllowlist []string `yaml:"company_allowlist"`
	MaxMetadataBytes *int64   `yaml:"max_metadata_bytes"`

	Engines []EngineConfig `yaml:"engines"`

	// Policy overrides the builtin weight table wholesale; partial
	// policies are rejected rather than merged.
	Policy *verdict.Policy `yaml:"policy"`
}

// EngineConfig is the on-disk shape of one external engine entry.
// Timeout is a duration string so the file reads naturally.
type EngineConfig struct {
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`
	URL     string  `yaml:"url"`
	APIKey  string  `yaml:"api_key"`
	Timeout *string `yaml:"timeout"`
	RPS     float64 `yaml:"rps"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// Resolve turns a FileConfig into a pipeline.Config, loading and
// compiling the rule file if one is named. Any error here is fatal to
// the host: the gate must not start on a partial configuration.
func Resolve(fc FileConfig) (pipeline.Config, error) {
	cfg := pipeline.Config{
		Limits:           container.DefaultLimits(),
		Policy:           verdict.DefaultPolicy(),
		RunTimeout:       30 * time.Second,
		PartTimeout:      2 * time.Second,
		PartAllowlist:    fc.PartAllowlist,
		AuthorAllowlist:  fc.AuthorAllowlist,
		CompanyAllowlist: fc.CompanyAllowlist,
	}
	if fc.MaxTotalBytes != nil {
		cfg.Limits.MaxTotalBytes = *fc.MaxTotalBytes
	}
	if fc.MaxEntries != nil {
		cfg.Limits.MaxEntries = *fc.MaxEntries
	}
	if fc.MaxEntryBytes != nil {
		cfg.Limits.MaxEntryBytes = *fc.MaxEntryBytes
	}
	if fc.MaxMetadataBytes != nil {
		cfg.MaxMetadataBytes = *fc.MaxMetadataBytes
	}
	if fc.RunTimeout != nil {
		d, err := time.ParseDuration(*fc.RunTimeout)
		if err != nil {
			return cfg, fmt.Errorf("run_timeout: %w", err)
		}
		cfg.RunTimeout = d
	}
	if fc.PartTimeout != nil {
		d, err := time.ParseDuration(*fc.PartTimeout)
		if err != nil {
			return cfg, fmt.Errorf("part_timeout: %w", err)
		}
		cfg.PartTimeout = d
	}
	for _, e := range fc.Engines {
		ec := engines.Config{
			Name:   e.Name,
			Kind:   engines.Kind(e.Kind),
			URL:    e.URL,
			APIKey: e.APIKey,
			RPS:    e.RPS,
		}
		if e.Timeout != nil {
			d, err := time.ParseDuration(*e.Timeout)
			if err != nil {
				return cfg, fmt.Errorf("engine %q: timeout: %w", e.Name, err)
			}
			ec.Timeout = d
		}
		cfg.Engines = append(cfg.Engines, ec)
	}
	if fc.RuleFile != nil && *fc.RuleFile != "" {
		rs, err := rules.Load(*fc.RuleFile)
		if err != nil {
			return cfg, err
		}
		cfg.Rules = rs
	}
	if fc.Policy != nil {
		cfg.Policy = *fc.Policy
	}
	if err := cfg.Policy.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
