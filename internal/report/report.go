// Package report assembles and renders verification reports. Assembly
// is a pure transformation of completed run state; persistence and
// transmission belong to the host.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/docgate/docgate/internal/types"
)

// Build produces the immutable VerificationReport for one run. It
// performs no I/O; every input is already final.
func Build(
	artifactIdentity string,
	validatorResults []types.ValidatorResult,
	externalResults []types.ExternalScanResult,
	riskScore int,
	verdict types.Verdict,
	policyVersion string,
) types.VerificationReport {
	return types.VerificationReport{
		RunID:            uuid.NewString(),
		ArtifactIdentity: artifactIdentity,
		RunTimestamp:     time.Now().UTC(),
		ValidatorResults: validatorResults,
		ExternalResults:  externalResults,
		RiskScore:        riskScore,
		Verdict:          verdict,
		PolicyVersion:    policyVersion,
	}
}
