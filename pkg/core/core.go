// Package core is the stable public surface for embedding the document
// verification gate in other programs. It re-exports the internal
// pipeline types as aliases so consumers depend on one import path.
package core

import (
	"context"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/pipeline"
	"github.com/docgate/docgate/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type (
	Config             = pipeline.Config
	VerificationReport = types.VerificationReport
	Finding            = types.Finding
	Verdict            = types.Verdict
)

const (
	VerdictPass = types.VerdictPass
	VerdictWarn = types.VerdictWarn
	VerdictFail = types.VerdictFail
)

// Gate is a reusable verification pipeline. One Gate serves any number
// of concurrent runs.
type Gate struct {
	p *pipeline.Pipeline
}

// NewGate builds a gate from configuration. Errors are configuration or
// policy problems and should abort host startup.
func NewGate(cfg Config) (*Gate, error) {
	p, err := pipeline.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Gate{p: p}, nil
}

// Verify runs the full pipeline over raw document bytes.
func (g *Gate) Verify(ctx context.Context, data []byte) (VerificationReport, error) {
	return g.p.Verify(ctx, data)
}

// Uninspectable reports whether err from Verify is a hard input error:
// the document could not even be opened. The delivery gate must treat
// it like fail, but it is triaged separately from a security verdict.
func Uninspectable(err error) bool {
	return container.KindOf(err) != ""
}
