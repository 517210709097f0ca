// Package verdict turns a run's accumulated results into a risk score
// and a pass/warn/fail classification under a fixed, versioned policy.
// Scoring is a pure function of its inputs: re-running an unchanged
// artifact under the same policy version yields the identical score and
// verdict, which is what makes verdicts auditable.
package verdict

import (
	"fmt"

	"github.com/docgate/docgate/internal/types"
)

// Policy is the weight table and forcing rules for one policy version.
// Policies are supplied as configuration and never mutated after load.
type Policy struct {
	Version string `yaml:"version"`

	// SeverityWeights score the worst finding of each validator.
	SeverityWeights map[types.Severity]int `yaml:"severity_weights"`
	// ExternalWeights score each external engine verdict.
	ExternalWeights map[types.EngineVerdict]int `yaml:"external_weights"`

	WarnThreshold int `yaml:"warn_threshold"`
	FailThreshold int `yaml:"fail_threshold"`

	// SuspiciousQuorum is how many suspicious external verdicts force at
	// least a warn. The escalation question (should repeated warns for
	// the same document ever harden into fail) deliberately lives here
	// in the weight table rather than in code.
	SuspiciousQuorum int `yaml:"suspicious_quorum"`
}

// DefaultPolicy is the shipped weight table.
func DefaultPolicy() Policy {
	return Policy{
		Version: "policy-v1",
		SeverityWeights: map[types.Severity]int{
			types.SevInfo:     0,
			types.SevLow:      5,
			types.SevMedium:   15,
			types.SevHigh:     30,
			types.SevCritical: 100,
		},
		ExternalWeights: map[types.EngineVerdict]int{
			types.VerdictClean:      0,
			types.VerdictUnknown:    5,
			types.VerdictSuspicious: 25,
			types.VerdictMalicious:  100,
		},
		WarnThreshold:    25,
		FailThreshold:    70,
		SuspiciousQuorum: 2,
	}
}

// Validate rejects a policy that could not produce meaningful verdicts.
// A bad policy is a startup failure, never a per-run one.
func (p Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("policy missing version")
	}
	for _, sev := range []types.Severity{types.SevInfo, types.SevLow, types.SevMedium, types.SevHigh, types.SevCritical} {
		if _, ok := p.SeverityWeights[sev]; !ok {
			return fmt.Errorf("policy %s: no weight for severity %q", p.Version, sev)
		}
	}
	for _, v := range []types.EngineVerdict{types.VerdictClean, types.VerdictSuspicious, types.VerdictMalicious, types.VerdictUnknown} {
		if _, ok := p.ExternalWeights[v]; !ok {
			return fmt.Errorf("policy %s: no weight for external verdict %q", p.Version, v)
		}
	}
	if p.WarnThreshold <= 0 || p.FailThreshold <= p.WarnThreshold {
		return fmt.Errorf("policy %s: thresholds must satisfy 0 < warn < fail", p.Version)
	}
	if p.SuspiciousQuorum <= 0 {
		return fmt.Errorf("policy %s: suspicious_quorum must be positive", p.Version)
	}
	return nil
}

// State tracks the aggregator through its transitions.
type State string

const (
	StatePending State = "pending"
	StateScoring State = "scoring"
	StateDecided State = "decided"
)

// Aggregator computes one verdict per run. It is not safe for
// concurrent use; each run constructs its own.
type Aggregator struct {
	policy Policy
	state  State
}

func New(policy Policy) *Aggregator {
	return &Aggregator{policy: policy, state: StatePending}
}

func (a *Aggregator) State() State   { return a.state }
func (a *Aggregator) Policy() Policy { return a.policy }

// Decide computes the risk score and verdict from all results.
func (a *Aggregator) Decide(validators []types.ValidatorResult, externals []types.ExternalScanResult) (int, types.Verdict) {
	a.state = StateScoring
	score := a.score(validators, externals)
	v := a.classify(score, validators, externals)
	a.state = StateDecided
	return score, v
}

func (a *Aggregator) score(validators []types.ValidatorResult, externals []types.ExternalScanResult) int {
	total := 0
	for _, vr := range validators {
		if len(vr.Findings) == 0 {
			continue
		}
		total += a.policy.SeverityWeights[vr.MaxSeverity()]
	}
	for _, er := range externals {
		total += a.policy.ExternalWeights[er.Verdict]
	}
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total
}

// classify applies the forcing rules before the thresholds. Any single
// critical finding or malicious external verdict is fail regardless of
// aggregate score: scoring must never be able to average away a
// confirmed macro or structural attack.
func (a *Aggregator) classify(score int, validators []types.ValidatorResult, externals []types.ExternalScanResult) types.Verdict {
	suspicious := 0
	for _, er := range externals {
		switch er.Verdict {
		case types.VerdictMalicious:
			return types.VerdictFail
		case types.VerdictSuspicious:
			suspicious++
		}
	}
	anyHigh := false
	for _, vr := range validators {
		max := vr.MaxSeverity()
		if max == types.SevCritical {
			return types.VerdictFail
		}
		if max == types.SevHigh {
			anyHigh = true
		}
	}

	if score >= a.policy.FailThreshold {
		return types.VerdictFail
	}
	if anyHigh || suspicious >= a.policy.SuspiciousQuorum || score >= a.policy.WarnThreshold {
		return types.VerdictWarn
	}
	return types.VerdictPass
}
