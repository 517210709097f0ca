package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/docgate/docgate/internal/types"
)

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, r types.VerificationReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintOptions controls human-readable rendering.
type PrintOptions struct {
	NoColor bool
}

// PrintTable renders the report for a terminal: a header block, one
// findings table, and one external engines table.
func PrintTable(w io.Writer, r types.VerificationReport, opts PrintOptions) {
	verdict := string(r.Verdict)
	if !opts.NoColor {
		verdict = colorVerdict(r.Verdict)
	}
	fmt.Fprintf(w, "Artifact:  %s\n", shorten(r.ArtifactIdentity, 16))
	fmt.Fprintf(w, "Run:       %s (%s)\n", r.RunID, r.RunTimestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Policy:    %s\n", r.PolicyVersion)
	fmt.Fprintf(w, "Verdict:   %s (risk score %d/100)\n\n", verdict, r.RiskScore)

	findings := r.Findings()
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("SEVERITY", "VALIDATOR", "CODE", "PART", "MESSAGE")
		for _, f := range findings {
			sev := string(f.Severity)
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			table.Append([]string{sev, f.ValidatorID, f.Code, f.Part, f.Message})
		}
		table.Render()
	}

	if len(r.ExternalResults) > 0 {
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.Header("ENGINE", "VERDICT", "LATENCY", "ERROR")
		for _, er := range r.ExternalResults {
			table.Append([]string{er.EngineName, string(er.Verdict), er.Latency.Round(1e6).String(), er.Err})
		}
		table.Render()
	}

	fmt.Fprintln(w)
	for _, vr := range r.ValidatorResults {
		status := string(vr.Status)
		if vr.Status == types.StatusErrored && !opts.NoColor {
			status = "\x1b[31m" + status + "\x1b[0m"
		}
		fmt.Fprintf(w, "%-10s %-9s %d finding(s) in %s\n", vr.ValidatorID, status, len(vr.Findings), vr.Duration.Round(1e5))
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func colorVerdict(v types.Verdict) string {
	switch v {
	case types.VerdictFail:
		return "\x1b[31;1mfail\x1b[0m"
	case types.VerdictWarn:
		return "\x1b[33;1mwarn\x1b[0m"
	default:
		return "\x1b[32;1mpass\x1b[0m"
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "\x1b[31;1mcritical\x1b[0m"
	case types.SevHigh:
		return "\x1b[31mhigh\x1b[0m"
	case types.SevMedium:
		return "\x1b[33mmedium\x1b[0m"
	case types.SevLow:
		return "\x1b[36mlow\x1b[0m"
	default:
		return strings.ToLower(string(s))
	}
}
