package grpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/astatarinov/calc/pkg/runner"
	"github.com/astatarinov/calc/pkg/service"
	"github.com/astatarinov/calc/pkg/store"
	"github.com/astatarinov/calc/pkg/types"
)

func startTestServer(t *testing.T) (string, *service.Service, func()) {
	t.Helper()
	svc := service.New(store.New(), runner.New(1, true))
	srv := New(svc)

	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err, "failed to listen")
	go srv.grpc.Serve(lis)

	return lis.Addr().String(), svc, func() {
		srv.grpc.Stop()
	}
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	client, err := Dial(addr)
	require.NoError(t, err, "failed to dial")
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEvaluate(t *testing.T) {
	addr, svc, cleanup := startTestServer(t)
	defer cleanup()

	client := dial(t, addr)
	ctx := context.Background()

	tests := []struct {
		expr string
		want types.Number
	}{
		{"2+3*4", types.NewInt(14)},
		{"(-5+3)*2", types.NewInt(-4)},
		{"10/2", types.NewDouble(5)},
		{"0.1+0.2", types.NewDouble(0.30000000000000004)},
		{"9223372036854775806+1", types.NewInt(9223372036854775807)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := client.Evaluate(ctx, tt.expr)
			require.NoError(t, err)
			assert.True(t, got.Identical(tt.want), "got %v (%s)", got, got.Type())
		})
	}

	assert.Len(t, svc.Store().ListEvaluations(""), len(tests))
}

func TestEvaluateErrors(t *testing.T) {
	addr, svc, cleanup := startTestServer(t)
	defer cleanup()

	client := dial(t, addr)
	ctx := context.Background()

	_, err := client.Evaluate(ctx, "2^3")
	require.Error(t, err)
	ce, ok := types.AsCalcError(err)
	require.True(t, ok, "want *types.CalcError, got %T: %v", err, err)
	assert.Equal(t, types.KindUnexpectedSymbol, ce.Kind)
	assert.Equal(t, '^', ce.Symbol)
	assert.Equal(t, 1, ce.Pos)
	assert.False(t, types.IsFatal(err))

	_, err = client.Evaluate(ctx, "5/0")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDivisionByZero)
	assert.True(t, types.IsFatal(err))
	assert.Equal(t, "Division by 0 appeared in your expression.", err.Error())
	ce, ok = types.AsCalcError(err)
	require.True(t, ok)
	assert.Equal(t, "/", ce.Operator)
	assert.Equal(t, 1, ce.Pos)

	_, err = client.Evaluate(ctx, "")
	ce, ok = types.AsCalcError(err)
	require.True(t, ok)
	assert.Equal(t, -1, ce.Pos, "errors without a position decode to -1")

	// Failed evaluations are recorded as well.
	evals := svc.Store().ListEvaluations("")
	require.Len(t, evals, 3)
	assert.Equal(t, store.EvaluationFailed, evals[1].State)
}

func TestErrorStatusCodes(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	client := dial(t, addr)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"recoverable", func() error {
			return client.conn.Invoke(ctx, "/"+ServiceName+"/Evaluate", wrapperspb.String("2+"), new(structpb.Struct))
		}, codes.InvalidArgument},
		{"fatal", func() error {
			return client.conn.Invoke(ctx, "/"+ServiceName+"/Evaluate", wrapperspb.String("1/0"), new(structpb.Struct))
		}, codes.Aborted},
		{"missing evaluation", func() error {
			_, err := client.GetEvaluation(ctx, "99")
			return err
		}, codes.NotFound},
		{"missing batch", func() error {
			_, err := client.RunBatch(ctx, "nope")
			return err
		}, codes.NotFound},
		{"empty batch id", func() error {
			_, err := client.RunBatch(ctx, "")
			return err
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestGetEvaluation(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	client := dial(t, addr)
	ctx := context.Background()

	rec, err := client.EvaluateRecord(ctx, "1.5*2")
	require.NoError(t, err)
	name := rec.GetFields()["name"].GetStringValue()
	assert.Equal(t, "evaluations/1", name)

	for _, key := range []string{"1", name} {
		got, err := client.GetEvaluation(ctx, key)
		require.NoError(t, err)
		f := got.GetFields()
		assert.Equal(t, "1.5*2", f["expression"].GetStringValue())
		assert.Equal(t, "1.5 2 *", f["postfix"].GetStringValue())
		assert.Equal(t, "3.0", f["display"].GetStringValue())
		assert.Equal(t, "double", f["resultType"].GetStringValue())
	}
}

func TestGetFailedEvaluation(t *testing.T) {
	addr, svc, cleanup := startTestServer(t)
	defer cleanup()

	ev, err := svc.Evaluate("2^3")
	require.Error(t, err)

	got, err := dial(t, addr).GetEvaluation(context.Background(), ev.Name)
	require.NoError(t, err)
	errFields := got.GetFields()["error"].GetStructValue().GetFields()
	assert.Equal(t, "UnexpectedSymbol", errFields["kind"].GetStringValue())
	assert.Equal(t, "^", errFields["symbol"].GetStringValue())
	assert.Equal(t, float64(1), errFields["position"].GetNumberValue())
	assert.False(t, errFields["fatal"].GetBoolValue())
}

func TestRunAndListBatches(t *testing.T) {
	addr, svc, cleanup := startTestServer(t)
	defer cleanup()

	_, err := svc.CreateBatch("basics", `
expressions:
  - name: sum
    expr: "2+2"
    expect: 4
  - name: zero
    expr: "1/0"
  - name: after
    expr: "3+3"
`, "")
	require.NoError(t, err)

	client := dial(t, addr)
	ctx := context.Background()

	names, err := client.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"batches/basics"}, names)

	run, err := client.RunBatch(ctx, "basics")
	require.NoError(t, err)
	f := run.GetFields()

	summary := f["summary"].GetStructValue().GetFields()
	assert.Equal(t, 3.0, summary["total"].GetNumberValue())
	assert.Equal(t, 1.0, summary["passed"].GetNumberValue())
	assert.Equal(t, 1.0, summary["skipped"].GetNumberValue())
	assert.Equal(t, "DivisionByZero", f["fatal"].GetStructValue().GetFields()["kind"].GetStringValue())
	assert.Len(t, f["evaluations"].GetListValue().GetValues(), 2)
}
