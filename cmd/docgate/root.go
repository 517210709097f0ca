package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagJSON    bool
	flagNoColor bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the docgate CLI.
var rootCmd = &cobra.Command{
	Use:           "docgate",
	Short:         "Verify generated office documents before release",
	Long:          "Docgate inspects a generated .docx package for structural damage, macros, embedded content, remote references and unresolved template output, and gates delivery on the result.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
}
