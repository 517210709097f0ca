package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docgate/docgate/internal/rules"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules [rulefile.yml]",
		Short: "Validate and list a rule file (builtin rules when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRules,
	}
	rootCmd.AddCommand(cmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	rs := rules.Default()
	if len(args) == 1 {
		loaded, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		rs = loaded
	}
	fmt.Fprintf(os.Stdout, "rule set %s (fingerprint %s)\n", rs.Version, rs.Fingerprint)
	fmt.Fprintf(os.Stdout, "placeholder patterns: %d\n", len(rs.Placeholders))
	for _, r := range rs.Rules {
		fmt.Fprintf(os.Stdout, "%-26s %-8s %-6s %s\n", r.ID, r.Severity, r.Kind, r.Description)
	}
	return nil
}
