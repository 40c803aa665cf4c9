// Package main is the entry point for the calc command.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/astatarinov/calc/pkg/config"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError ends the process with a specific exit code. Its message has
// already been reported when quiet is set.
type exitError struct {
	code  int
	quiet bool
	err   error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "calc",
		Short:         "Arithmetic expression calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("calc version {{.Version}}\n")

	root.PersistentFlags().String("config", "", "YAML config file (env CALC_CONFIG)")

	root.AddCommand(newEvalCmd(), newReplCmd(), newRunCmd(), newServeCmd())
	return root
}

func main() {
	log.SetFlags(0)

	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if !ee.quiet {
				log.Printf("Error: %v", ee)
			}
			os.Exit(ee.code)
		}
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config or CALC_CONFIG, then the
// environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CALC_CONFIG")
	}
	return config.Load(path)
}
