package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/astatarinov/calc/pkg/batch"
	"github.com/astatarinov/calc/pkg/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a batch file of expressions",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatchFile,
	}
	cmd.Flags().Int("workers", 0, "Concurrent evaluations (default 4, env WORKERS)")
	cmd.Flags().Bool("continue-on-fatal", false, "Keep running after a fatal error unless the file sets stopOnFatal")
	return cmd
}

func runBatchFile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if v, _ := cmd.Flags().GetBool("continue-on-fatal"); v {
		cfg.StopOnFatal = false
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	b, err := batch.Parse(data)
	if err != nil {
		return err
	}

	report, err := runner.New(cfg.Workers, cfg.StopOnFatal).Run(cmd.Context(), b)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)

	summary := report.Summary()
	switch {
	case report.Fatal != nil:
		return &exitError{code: 2, quiet: true, err: report.Fatal}
	case summary.Failed > 0 || summary.Mismatched > 0:
		return &exitError{code: 1, quiet: true}
	}
	return nil
}

func printReport(out io.Writer, report *runner.Report) {
	for _, o := range report.Outcomes {
		name := o.Entry.Name
		switch {
		case o.Skipped:
			fmt.Fprintf(out, "SKIP      %s\n", name)
		case o.Err != nil:
			fmt.Fprintf(out, "FAIL      %s: %v\n", name, o.Err)
		case o.Mismatch:
			fmt.Fprintf(out, "MISMATCH  %s = %s (expected %s)\n", name, o.Result, *o.Entry.Expect)
		default:
			fmt.Fprintf(out, "OK        %s = %s\n", name, o.Result)
		}
	}
	if report.Fatal != nil {
		fmt.Fprintf(out, "stopped: %v\n", report.Fatal)
	}
	fmt.Fprintln(out, report.Summary())
}
