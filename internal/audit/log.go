// Package audit appends verification runs to a JSONL log. It is the
// reference persistence collaborator: records are keyed by artifact
// identity plus run timestamp, so repeated scans of the same document
// accumulate instead of overwriting each other.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docgate/docgate/internal/types"
)

// Record is one persisted verification run.
type Record struct {
	Timestamp        time.Time         `json:"timestamp"`
	RunID            string            `json:"run_id"`
	ArtifactIdentity string            `json:"artifact_identity"`
	Verdict          string            `json:"verdict"`
	RiskScore        int               `json:"risk_score"`
	PolicyVersion    string            `json:"policy_version"`
	SeverityCounts   map[string]int    `json:"severity_counts"`
	FindingCount     int               `json:"finding_count"`
	ExternalVerdicts map[string]string `json:"external_verdicts,omitempty"`
}

// Log appends records to a JSONL file.
type Log struct {
	path string
}

func New(path string) *Log { return &Log{path: path} }

// Append writes one record. The file is owner-only: verification
// history reveals what documents a deployment produces.
func (l *Log) Append(rec Record) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// History reads all records, newest first.
func (l *Log) History() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var records []Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// FromReport summarizes a report into its audit record.
func FromReport(r types.VerificationReport) Record {
	counts := make(map[string]int)
	total := 0
	for _, f := range r.Findings() {
		counts[string(f.Severity)]++
		total++
	}
	ext := make(map[string]string, len(r.ExternalResults))
	for _, er := range r.ExternalResults {
		ext[er.EngineName] = string(er.Verdict)
	}
	if len(ext) == 0 {
		ext = nil
	}
	return Record{
		Timestamp:        r.RunTimestamp,
		RunID:            r.RunID,
		ArtifactIdentity: r.ArtifactIdentity,
		Verdict:          string(r.Verdict),
		RiskScore:        r.RiskScore,
		PolicyVersion:    r.PolicyVersion,
		SeverityCounts:   counts,
		FindingCount:     total,
		ExternalVerdicts: ext,
	}
}
