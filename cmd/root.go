package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:     "logwatch",
	Short:   "logwatch - runtime log capture and level control",
	Long:    `A single-binary service that keeps a bounded history of recent log events and lets operators change logger levels at runtime over an admin API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("logwatch version {{.Version}}\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
