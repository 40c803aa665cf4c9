package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	grpcapi "github.com/astatarinov/calc/pkg/api/grpc"
	"github.com/astatarinov/calc/pkg/expr"
	"github.com/astatarinov/calc/pkg/types"
)

const (
	replPrompt  = "Enter your expression: "
	replGoodbye = "Have a nice day!"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [--] EXPR...",
		Short: "Evaluate expressions and print the results",
		Long: "Evaluate expressions and print the results.\n\n" +
			"Put -- before the expressions when one starts with '-', so it is not read as a flag.",
		Example: "  calc eval \"2+3*4\" \"(1+2)/4\"\n" +
			"  calc eval --postfix -- -5+3",
		Args: cobra.MinimumNArgs(1),
		RunE: runEval,
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if strings.Contains(err.Error(), "unknown shorthand flag") {
			return fmt.Errorf("%w (use -- before expressions that start with '-')", err)
		}
		return err
	})
	cmd.Flags().Bool("postfix", false, "Also print the postfix form")
	cmd.Flags().String("remote", "", "Evaluate through the gRPC server at this address")
	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	showPostfix, _ := cmd.Flags().GetBool("postfix")
	remote, _ := cmd.Flags().GetString("remote")
	out := cmd.OutOrStdout()

	evaluate := func(s string) (types.Number, error) {
		prog, err := expr.Compile(s)
		if err != nil {
			return types.Number{}, err
		}
		if showPostfix {
			fmt.Fprintf(out, "postfix: %s\n", prog)
		}
		return prog.Eval()
	}

	if remote != "" {
		client, err := grpcapi.Dial(remote)
		if err != nil {
			return err
		}
		defer client.Close()

		evaluate = func(s string) (types.Number, error) {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return client.Evaluate(ctx, s)
		}
	}

	failed := false
	for _, arg := range args {
		result, err := evaluate(arg)
		if err == nil {
			fmt.Fprintf(out, "= %s\n", result)
			continue
		}

		if _, ok := types.AsCalcError(err); !ok {
			return err
		}
		fmt.Fprintf(out, "Error occurred: %v\n", err)
		if types.IsFatal(err) {
			return &exitError{code: 2, quiet: true, err: err}
		}
		failed = true
	}

	if failed {
		return &exitError{code: 1, quiet: true}
	}
	return nil
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return repl(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// repl reads one expression per line until "q" or end of input. A fatal
// calculator error ends the session with exit code 2.
func repl(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Running calculator. Enter 'q' to quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintf(out, "\n%s\n", replGoodbye)
			return scanner.Err()
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "q" {
			fmt.Fprintln(out, replGoodbye)
			return nil
		}

		result, err := expr.Evaluate(line)
		switch {
		case err == nil:
			fmt.Fprintf(out, "= %s\n", result)
		case types.IsFatal(err):
			fmt.Fprintf(out, "Error occurred: %v\n", err)
			return &exitError{code: 2, quiet: true, err: err}
		default:
			fmt.Fprintf(out, "Error occurred: %v\nLet's correct your expression and try again\n\n", err)
		}
	}
}
