// Package validators holds the local checks a verification run applies
// to a parsed document artifact. Validators are pure reads over the
// artifact: they share it freely across goroutines and never mutate it.
package validators

import (
	"context"
	"fmt"
	"time"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

// Validator is one local check over an artifact. Run returns every
// finding it discovered; a non-nil error means the validator itself
// failed, which must not be conflated with "found no threat".
type Validator interface {
	ID() string
	Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error)
}

// Execute runs one validator and wraps its outcome into the uniform
// ValidatorResult shape. Panics are contained here so one validator
// choking on a corrupt sub-part cannot abort its siblings: the run
// invariant is one result per configured validator, always.
func Execute(ctx context.Context, v Validator, a *container.Artifact) (result types.ValidatorResult) {
	start := time.Now()
	result = types.ValidatorResult{
		ValidatorID: v.ID(),
		Status:      types.StatusCompleted,
	}
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Status = types.StatusErrored
			result.Findings = append(result.Findings, internalError(v.ID(), fmt.Sprintf("panic: %v", r)))
		}
	}()

	findings, err := v.Run(ctx, a)
	result.Findings = findings
	if err != nil {
		result.Status = types.StatusErrored
		result.Findings = append(result.Findings, internalError(v.ID(), err.Error()))
	}
	return result
}

// internalError is the finding-shaped record of a validator failure.
func internalError(validatorID, detail string) types.Finding {
	return types.Finding{
		ValidatorID: validatorID,
		Severity:    types.SevInfo,
		Code:        "internal_error",
		Message:     "validator failed: " + detail,
	}
}

func finding(validatorID string, sev types.Severity, code, msg, part string) types.Finding {
	return types.Finding{
		ValidatorID: validatorID,
		Severity:    sev,
		Code:        code,
		Message:     msg,
		Part:        part,
	}
}
