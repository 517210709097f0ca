// Package rules loads the signature rule set the content validator
// evaluates. Rules are data, not code: they live in a YAML file, are
// compiled once at process start into an immutable RuleSet, and are
// shared read-only across concurrent verification runs. A rule file
// that does not compile is a startup failure, never a partial load.
package rules

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	doublestar "github.com/bmatcuk/doublestar/v4"
	xxhash "github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/docgate/docgate/internal/types"
)

// Kind says what a rule matches against: extracted text or raw bytes.
type Kind string

const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

// fileShape is the on-disk YAML layout.
type fileShape struct {
	Version      string      `yaml:"version"`
	Placeholders []string    `yaml:"placeholders"`
	Rules        []ruleShape `yaml:"rules"`
}

type ruleShape struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Severity    string   `yaml:"severity"`
	Kind        string   `yaml:"kind"`
	Pattern     string   `yaml:"pattern"`
	BytesHex    string   `yaml:"bytes_hex"`
	Parts       []string `yaml:"parts"`
}

// Rule is one compiled signature. Exactly one of re/literal is set.
type Rule struct {
	ID          string
	Description string
	Severity    types.Severity
	Kind        Kind

	re      *regexp.Regexp
	literal []byte
	parts   []string
}

// AppliesTo reports whether the rule is scoped to the given part name.
// A rule with no parts globs applies everywhere.
func (r *Rule) AppliesTo(part string) bool {
	if len(r.parts) == 0 {
		return true
	}
	for _, g := range r.parts {
		if ok, _ := doublestar.Match(g, part); ok {
			return true
		}
	}
	return false
}

// Match returns the offset and matched excerpt of the first hit in
// data, or ok=false.
func (r *Rule) Match(data []byte) (offset int64, excerpt string, ok bool) {
	if r.literal != nil {
		i := bytes.Index(data, r.literal)
		if i < 0 {
			return 0, "", false
		}
		return int64(i), boundedExcerpt(r.literal), true
	}
	loc := r.re.FindIndex(data)
	if loc == nil {
		return 0, "", false
	}
	return int64(loc[0]), boundedExcerpt(data[loc[0]:loc[1]]), true
}

// RuleSet is the process-wide immutable compiled rule state.
type RuleSet struct {
	Version      string
	Placeholders []*regexp.Regexp
	Rules        []*Rule

	// Fingerprint is a xxhash of the rule source, so audit records can
	// say exactly which rules produced a run's findings.
	Fingerprint string
}

// Load reads and compiles a rule file. Any error is fatal to the host:
// running with a partially loaded rule set is worse than not starting.
func Load(path string) (*RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rs, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rs, nil
}

// Parse compiles a rule document from bytes.
func Parse(src []byte) (*RuleSet, error) {
	var f fileShape
	if err := yaml.Unmarshal(src, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("rule file missing version")
	}

	rs := &RuleSet{
		Version:     f.Version,
		Fingerprint: fmt.Sprintf("%016x", xxhash.Sum64(src)),
	}
	for i, p := range f.Placeholders {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("placeholder %d: %w", i, err)
		}
		rs.Placeholders = append(rs.Placeholders, re)
	}

	seen := make(map[string]bool)
	for i, r := range f.Rules {
		rule, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true
		rs.Rules = append(rs.Rules, rule)
	}
	return rs, nil
}

func compileRule(r ruleShape) (*Rule, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	sev := types.Severity(r.Severity)
	if sev.Rank() < 0 {
		return nil, fmt.Errorf("unknown severity %q", r.Severity)
	}
	kind := Kind(r.Kind)
	if kind != KindText && kind != KindBinary {
		return nil, fmt.Errorf("unknown kind %q", r.Kind)
	}
	if (r.Pattern == "") == (r.BytesHex == "") {
		return nil, fmt.Errorf("exactly one of pattern or bytes_hex required")
	}

	out := &Rule{
		ID:          r.ID,
		Description: r.Description,
		Severity:    sev,
		Kind:        kind,
		parts:       r.Parts,
	}
	for _, g := range r.Parts {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid parts glob %q", g)
		}
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		out.re = re
		return out, nil
	}
	lit, err := hex.DecodeString(r.BytesHex)
	if err != nil {
		return nil, fmt.Errorf("invalid bytes_hex: %w", err)
	}
	if len(lit) == 0 {
		return nil, fmt.Errorf("empty bytes_hex")
	}
	if kind != KindBinary {
		return nil, fmt.Errorf("bytes_hex requires kind binary")
	}
	out.literal = lit
	return out, nil
}

const maxExcerpt = 80

// boundedExcerpt keeps evidence excerpts small and printable.
func boundedExcerpt(b []byte) string {
	if len(b) > maxExcerpt {
		b = b[:maxExcerpt]
	}
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			out[i] = '.'
			continue
		}
		out[i] = c
	}
	return string(out)
}

