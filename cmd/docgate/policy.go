package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective verdict policy",
		Args:  cobra.NoArgs,
		RunE:  runPolicy,
	}
	rootCmd.AddCommand(cmd)
}

func runPolicy(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg.Policy)
}
