package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docgate/docgate/internal/audit"
	"github.com/docgate/docgate/internal/config"
	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/pipeline"
	"github.com/docgate/docgate/internal/report"
	"github.com/docgate/docgate/internal/types"
)

var (
	flagAuditLog string
	flagStrict   bool
)

// Exit codes for the pipeline gate: 0 deliver (pass, or warn with a
// logged exception), 1 do not deliver (fail), 3 uninspectable input.
// --strict moves warn to exit 1 for deployments requiring manual review.
const (
	exitDeliver       = 0
	exitFail          = 1
	exitUninspectable = 3
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify <document.docx>",
		Short: "Verify one document and print its report",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagAuditLog, "audit-log", "", "append the run to this JSONL audit log")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "treat warn as fail (manual review required)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	rep, err := p.Verify(context.Background(), data)
	if err != nil {
		if kind := container.KindOf(err); kind != "" {
			fmt.Fprintf(os.Stderr, "uninspectable input (%s): %v\n", kind, err)
			os.Exit(exitUninspectable)
		}
		return err
	}

	if flagAuditLog != "" {
		if aerr := audit.New(flagAuditLog).Append(audit.FromReport(rep)); aerr != nil {
			fmt.Fprintln(os.Stderr, "warning:", aerr)
		}
	}

	if flagJSON {
		if err := report.WriteJSON(os.Stdout, rep); err != nil {
			return err
		}
	} else {
		noColor := flagNoColor || !term.IsTerminal(int(os.Stdout.Fd()))
		report.PrintTable(os.Stdout, rep, report.PrintOptions{NoColor: noColor})
	}

	switch rep.Verdict {
	case types.VerdictFail:
		os.Exit(exitFail)
	case types.VerdictWarn:
		if flagStrict {
			os.Exit(exitFail)
		}
		fmt.Fprintln(os.Stderr, "warn: delivering with logged exception")
	}
	return nil
}

// loadConfig resolves the effective pipeline configuration: the file
// named by --config, or built-in defaults when none is given.
func loadConfig() (pipeline.Config, error) {
	if flagConfig == "" {
		return config.Resolve(config.FileConfig{})
	}
	fc, err := config.LoadFile(flagConfig)
	if err != nil {
		return pipeline.Config{}, err
	}
	return config.Resolve(fc)
}
