package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astatarinov/calc/pkg/config"
	"github.com/astatarinov/calc/pkg/types"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"CALC_CONFIG", "WORKERS", "PORT", "GRPC_PORT"} {
		t.Setenv(key, "")
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func TestEvalCommand(t *testing.T) {
	out, err := execute(t, "", "eval", "2+3*4", "10/2")
	require.NoError(t, err)
	assert.Equal(t, "= 14\n= 5.0\n", out)
}

func TestEvalPostfix(t *testing.T) {
	out, err := execute(t, "", "eval", "--postfix", "(2+3)*4")
	require.NoError(t, err)
	assert.Equal(t, "postfix: 2 3 + 4 *\n= 20\n", out)
}

func TestEvalLeadingMinus(t *testing.T) {
	out, err := execute(t, "", "eval", "--", "-5+3", "-(2+3)")
	require.NoError(t, err)
	assert.Equal(t, "= -2\n= -5\n", out)

	out, err = execute(t, "", "eval", "--postfix", "--", "-5+3")
	require.NoError(t, err)
	assert.Equal(t, "postfix: 5 ~ 3 +\n= -2\n", out)

	_, err = execute(t, "", "eval", "-5+3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use -- before expressions that start with '-'")
}

func TestEvalExitCodes(t *testing.T) {
	out, err := execute(t, "", "eval", "2^3", "1+1")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Error occurred: Got invalid symbol: '^'")
	assert.Contains(t, out, "= 2\n")

	out, err = execute(t, "", "eval", "5/0", "1+1")
	assert.Equal(t, 2, exitCode(err))
	assert.ErrorIs(t, err, types.ErrDivisionByZero)
	assert.NotContains(t, out, "= 2", "evaluation stops at the fatal error")
}

func TestRepl(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     []string
		wantCode int
	}{
		{
			name:  "quit",
			input: "2+2\n(2+3)*4\nq\n",
			want:  []string{"= 4\n", "= 20\n", replGoodbye},
		},
		{
			name:  "end of input",
			input: "1+1\n",
			want:  []string{"= 2\n", replGoodbye},
		},
		{
			name:  "recoverable error",
			input: "(2+3\n\n2*3\nq\n",
			want: []string{
				"Error occurred: Not matching parentheses were found in math expression.",
				"Error occurred: Empty input was provided.",
				"Let's correct your expression and try again",
				"= 6\n",
			},
		},
		{
			name:     "fatal error",
			input:    "1/0\n2+2\n",
			want:     []string{"Error occurred: Division by 0 appeared in your expression."},
			wantCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := repl(strings.NewReader(tt.input), &out)
			assert.Equal(t, tt.wantCode, exitCode(err))
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
			assert.Contains(t, out.String(), replPrompt)
		})
	}
}

func TestReplFatalEndsSession(t *testing.T) {
	var out bytes.Buffer
	_ = repl(strings.NewReader("1/0\n2+2\n"), &out)
	assert.NotContains(t, out.String(), "= 4")
	assert.NotContains(t, out.String(), replGoodbye)
}

func writeBatch(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	path := writeBatch(t, `
expressions:
  - name: sum
    expr: "2+3*4"
    expect: 14
  - name: half
    expr: "1/2"
`)
	out, err := execute(t, "", "run", "--workers", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK        sum = 14")
	assert.Contains(t, out, "OK        half = 0.5")
	assert.Contains(t, out, "2 total, 2 passed, 0 failed, 0 mismatched, 0 skipped")
}

func TestRunCommandFailures(t *testing.T) {
	mismatch := writeBatch(t, `expressions: [{expr: "1+1", expect: 3}, "2^2"]`)
	out, err := execute(t, "", "run", mismatch)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "MISMATCH  expr0 = 2 (expected 3)")
	assert.Contains(t, out, "FAIL      expr1")

	fatal := writeBatch(t, `expressions: ["5/0", "1+1"]`)
	out, err = execute(t, "", "run", "--workers", "1", fatal)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, "SKIP      expr1")
	assert.Contains(t, out, "stopped: Division by 0 appeared in your expression.")

	out, err = execute(t, "", "run", "--workers", "1", "--continue-on-fatal", fatal)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "OK        expr1 = 2")

	_, err = execute(t, "", "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestServeConfigPrecedence(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9000", "--access-log"}))

	cfg := config.Default()
	cfg.Port = 7000
	cfg.GRPCPort = 7001
	require.NoError(t, serveConfig(cmd, cfg))

	assert.Equal(t, 9000, cfg.Port, "flag wins")
	assert.Equal(t, 7001, cfg.GRPCPort, "unset flag keeps the loaded value")
	assert.True(t, cfg.AccessLog)

	bad := newServeCmd()
	require.NoError(t, bad.ParseFlags([]string{"--port", "70000"}))
	assert.Error(t, serveConfig(bad, config.Default()))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "calc version dev"), out)
}
