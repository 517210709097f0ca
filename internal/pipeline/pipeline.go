// Package pipeline orchestrates one verification run: parse the
// artifact, run every local validator, fan out to external engines,
// aggregate, and emit the report. The caller always gets a complete
// report or a hard input error, never a partial report silently missing
// a validator's contribution.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/engines"
	"github.com/docgate/docgate/internal/report"
	"github.com/docgate/docgate/internal/rules"
	"github.com/docgate/docgate/internal/types"
	"github.com/docgate/docgate/internal/validators"
	"github.com/docgate/docgate/internal/verdict"
)

// Config is the opaque configuration object the host hands over at
// process start. The pipeline never reads files or environment itself.
type Config struct {
	Limits container.Limits
	// Rules is the compiled rule set; nil selects the builtin set.
	Rules  *rules.RuleSet
	Policy verdict.Policy

	Engines []engines.Config
	// RunTimeout bounds the external scan phase of each run.
	RunTimeout time.Duration
	// PartTimeout bounds rule evaluation per part.
	PartTimeout time.Duration

	PartAllowlist    []string
	AuthorAllowlist  []string
	CompanyAllowlist []string
	MaxMetadataBytes int64
}

// Pipeline is the verification gate. Construct once, share freely: the
// compiled rule set and policy are immutable, and each run owns its own
// artifact and findings.
type Pipeline struct {
	validators []validators.Validator
	adapter    *engines.Adapter
	policy     verdict.Policy
	limits     container.Limits
}

// New validates configuration and builds the pipeline. Configuration
// and policy errors are fatal here, before any run begins: the gate
// refuses to start rather than run with a partial rule set or an
// unusable weight table.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	rs := cfg.Rules
	if rs == nil {
		rs = rules.Default()
	}
	built, err := engines.Build(cfg.Engines)
	if err != nil {
		return nil, fmt.Errorf("engines: %w", err)
	}

	return &Pipeline{
		validators: []validators.Validator{
			&validators.Structure{PartAllowlist: cfg.PartAllowlist},
			&validators.Macro{},
			&validators.Embedded{},
			&validators.Metadata{
				AuthorAllowlist:  cfg.AuthorAllowlist,
				CompanyAllowlist: cfg.CompanyAllowlist,
				MaxPartBytes:     cfg.MaxMetadataBytes,
			},
			&validators.Content{Rules: rs, PartTimeout: cfg.PartTimeout},
		},
		adapter: engines.NewAdapter(built, cfg.RunTimeout),
		policy:  cfg.Policy,
		limits:  cfg.Limits,
	}, nil
}

// ValidatorIDs lists the configured validators in execution order.
func (p *Pipeline) ValidatorIDs() []string {
	out := make([]string, len(p.validators))
	for i, v := range p.validators {
		out[i] = v.ID()
	}
	return out
}

// Verify runs the full pipeline over raw document bytes. A returned
// error is always a hard input error (see container.KindOf); every
// other failure mode is contained inside the report.
func (p *Pipeline) Verify(ctx context.Context, data []byte) (types.VerificationReport, error) {
	a, err := container.Open(data, p.limitsOrDefault())
	if err != nil {
		return types.VerificationReport{}, err
	}
	return p.verifyArtifact(ctx, a), nil
}

func (p *Pipeline) limitsOrDefault() container.Limits {
	if p.limits == (container.Limits{}) {
		return container.DefaultLimits()
	}
	return p.limits
}

func (p *Pipeline) verifyArtifact(ctx context.Context, a *container.Artifact) types.VerificationReport {
	// External engines get the longest runway, so they start first and
	// run while the local validators work.
	extCh := make(chan []types.ExternalScanResult, 1)
	go func() {
		extCh <- p.adapter.ScanAll(ctx, a.Bytes(), a.Identity())
	}()

	// Local validators are pure reads over the artifact; they run
	// concurrently with each other and do not share the external
	// timeout budget. Results keep configuration order.
	results := make([]types.ValidatorResult, len(p.validators))
	var wg sync.WaitGroup
	for i, v := range p.validators {
		i, v := i, v
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = validators.Execute(ctx, v, a)
		}()
	}
	wg.Wait()

	externals := <-extCh

	agg := verdict.New(p.policy)
	score, v := agg.Decide(results, externals)
	return report.Build(a.Identity(), results, externals, score, v, p.policy.Version)
}
