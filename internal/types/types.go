package types

import "time"

// Severity is the risk level attached to a single finding.
type Severity string

const (
	SevInfo     Severity = "info"
	SevLow      Severity = "low"
	SevMedium   Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// severityRank gives Severity a total order: critical > high > medium > low > info.
var severityRank = map[Severity]int{
	SevInfo:     0,
	SevLow:      1,
	SevMedium:   2,
	SevHigh:     3,
	SevCritical: 4,
}

// Rank returns the numeric position of s in the severity order.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Finding is one detected fact about the artifact under verification.
// Findings are append-only within a run; insertion order is discovery
// order, not severity order.
type Finding struct {
	ValidatorID string   `json:"validator_id"`
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Part        string   `json:"part,omitempty"`     // archive entry the finding refers to
	Offset      int64    `json:"offset,omitempty"`   // byte offset within the part, -1 if not applicable
	Evidence    string   `json:"evidence,omitempty"` // bounded excerpt or matched rule id
}

// ValidatorStatus describes how a validator's run ended.
type ValidatorStatus string

const (
	StatusCompleted ValidatorStatus = "completed"
	StatusSkipped   ValidatorStatus = "skipped"
	// StatusErrored means the validator itself failed (e.g. a corrupt
	// sub-part it could not parse). It must not be read as "no threat".
	StatusErrored ValidatorStatus = "errored"
)

// ValidatorResult is produced exactly once per validator per run and is
// immutable after production.
type ValidatorResult struct {
	ValidatorID string          `json:"validator_id"`
	Status      ValidatorStatus `json:"status"`
	Findings    []Finding       `json:"findings"`
	Duration    time.Duration   `json:"duration"`
}

// MaxSeverity returns the highest severity among the result's findings,
// or info when there are none.
func (r ValidatorResult) MaxSeverity() Severity {
	max := SevInfo
	for _, f := range r.Findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}

// EngineVerdict is a normalized external detection engine answer.
// Unknown covers timeouts and transport failures: unknown is never clean.
type EngineVerdict string

const (
	VerdictClean      EngineVerdict = "clean"
	VerdictSuspicious EngineVerdict = "suspicious"
	VerdictMalicious  EngineVerdict = "malicious"
	VerdictUnknown    EngineVerdict = "unknown"
)

// ExternalScanResult records one external engine's answer (or its
// absence) for the artifact.
type ExternalScanResult struct {
	EngineName string        `json:"engine_name"`
	Verdict    EngineVerdict `json:"verdict"`
	// RawDigest is a xxhash digest of the raw engine response, kept so a
	// verdict can be traced back to the exact payload that produced it.
	RawDigest string        `json:"raw_response_digest,omitempty"`
	Latency   time.Duration `json:"latency"`
	Err       string        `json:"error,omitempty"`
}

// Verdict is the terminal pass/warn/fail classification gating delivery.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// VerificationReport is the terminal artifact of one verification run.
// It always contains exactly one ValidatorResult per configured
// validator, even for validators that errored. Immutable once produced;
// persistence keys it by (ArtifactIdentity, RunTimestamp) so repeated
// scans of the same artifact never overwrite each other.
type VerificationReport struct {
	RunID            string               `json:"run_id"`
	ArtifactIdentity string               `json:"artifact_identity"`
	RunTimestamp     time.Time            `json:"run_timestamp"`
	ValidatorResults []ValidatorResult    `json:"validator_results"`
	ExternalResults  []ExternalScanResult `json:"external_results"`
	RiskScore        int                  `json:"risk_score"`
	Verdict          Verdict              `json:"verdict"`
	PolicyVersion    string               `json:"policy_version"`
}

// Findings flattens all validator findings in discovery order.
func (r VerificationReport) Findings() []Finding {
	var out []Finding
	for _, vr := range r.ValidatorResults {
		out = append(out, vr.Findings...)
	}
	return out
}

// HasFindingCode reports whether any validator emitted a finding with
// the given code.
func (r VerificationReport) HasFindingCode(code string) bool {
	for _, f := range r.Findings() {
		if f.Code == code {
			return true
		}
	}
	return false
}
