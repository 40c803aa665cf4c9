// Package grpcapi implements the calculator's gRPC service. Messages are
// protobuf well-known types, so clients need no generated code.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/astatarinov/calc/pkg/batch"
	"github.com/astatarinov/calc/pkg/service"
	"github.com/astatarinov/calc/pkg/store"
	"github.com/astatarinov/calc/pkg/types"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "calc.v1.Calculator"

// CalculatorServer is the server API for the Calculator service.
type CalculatorServer interface {
	// Evaluate evaluates and records an expression. Calculator errors are
	// returned as InvalidArgument, or Aborted when fatal.
	Evaluate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetEvaluation returns a recorded evaluation by ID or full name.
	GetEvaluation(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// RunBatch runs a stored batch by ID.
	RunBatch(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListBatches lists the stored batches.
	ListBatches(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server implements CalculatorServer on top of the calculator service.
type Server struct {
	svc  *service.Service
	grpc *grpc.Server
}

// New creates a new gRPC server wrapping the given service.
func New(svc *service.Service) *Server {
	srv := &Server{svc: svc}

	gs := grpc.NewServer()
	gs.RegisterService(&serviceDesc, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Calculator Service ---

func (s *Server) Evaluate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	ev, err := s.svc.Evaluate(req.GetValue())
	if err != nil {
		return nil, calcStatus(err, ev.Name)
	}
	return toStruct(evaluationToMap(ev))
}

func (s *Server) GetEvaluation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := req.GetValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "evaluation name is required")
	}
	if !strings.HasPrefix(name, "evaluations/") {
		name = store.EvaluationName(name)
	}

	ev, err := s.svc.Store().GetEvaluation(name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return toStruct(evaluationToMap(ev))
}

func (s *Server) RunBatch(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "batch ID is required")
	}

	run, err := s.svc.RunBatch(ctx, store.BatchName(req.GetValue()))
	if err != nil {
		var pe *batch.ParseError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.As(err, &pe):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	return toStruct(runToMap(run))
}

func (s *Server) ListBatches(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	batches := s.svc.Store().ListBatches()

	items := make([]interface{}, len(batches))
	for i, b := range batches {
		items[i] = map[string]interface{}{
			"name":        b.Name,
			"description": b.Description,
			"revisionId":  b.RevisionID,
			"updateTime":  b.UpdateTime.Format(time.RFC3339),
		}
	}
	return toStruct(map[string]interface{}{"batches": items})
}

// --- Internal helpers ---

// calcStatus converts a calculator error into a status carrying the error
// details as a Struct.
func calcStatus(err error, evaluation string) error {
	ce, ok := types.AsCalcError(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.InvalidArgument
	if ce.Fatal() {
		code = codes.Aborted
	}

	var details map[string]interface{}
	data, convErr := json.Marshal(ce)
	if convErr == nil {
		convErr = json.Unmarshal(data, &details)
	}
	if convErr != nil {
		return status.Error(code, ce.Message)
	}
	details["evaluation"] = evaluation

	pb, convErr := structpb.NewStruct(details)
	if convErr != nil {
		return status.Error(code, ce.Message)
	}
	st, convErr := status.New(code, ce.Message).WithDetails(pb)
	if convErr != nil {
		return status.Error(code, ce.Message)
	}
	return st.Err()
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	pb, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return pb, nil
}

func evaluationToMap(ev *store.Evaluation) map[string]interface{} {
	m := map[string]interface{}{
		"name":       ev.Name,
		"expression": ev.Expression,
		"state":      string(ev.State),
		"createTime": ev.CreateTime.Format(time.RFC3339),
	}
	if ev.Postfix != "" {
		m["postfix"] = ev.Postfix
	}
	if ev.Result != nil {
		// Struct numbers are doubles; display keeps large ints exact.
		m["result"] = ev.Result.ToGoValue()
		m["resultType"] = ev.ResultType
		m["display"] = ev.Result.String()
	}
	if ev.Error != nil {
		errMap := map[string]interface{}{
			"kind":    ev.Error.Kind,
			"message": ev.Error.Message,
			"fatal":   ev.Error.Fatal,
		}
		if ev.Error.Symbol != "" {
			errMap["symbol"] = ev.Error.Symbol
		}
		if ev.Error.Operator != "" {
			errMap["operator"] = ev.Error.Operator
		}
		if ev.Error.Position != nil {
			errMap["position"] = *ev.Error.Position
		}
		m["error"] = errMap
	}
	if ev.Batch != "" {
		m["batch"] = ev.Batch
		m["entry"] = ev.Entry
	}
	return m
}

func runToMap(run *service.BatchRun) map[string]interface{} {
	evals := make([]interface{}, len(run.Evaluations))
	for i, ev := range run.Evaluations {
		evals[i] = evaluationToMap(ev)
	}

	m := map[string]interface{}{
		"batch": run.Batch,
		"summary": map[string]interface{}{
			"total":      run.Summary.Total,
			"passed":     run.Summary.Passed,
			"failed":     run.Summary.Failed,
			"skipped":    run.Summary.Skipped,
			"mismatched": run.Summary.Mismatched,
		},
		"evaluations": evals,
	}
	if len(run.Skipped) > 0 {
		m["skipped"] = stringsToList(run.Skipped)
	}
	if len(run.Mismatched) > 0 {
		m["mismatched"] = stringsToList(run.Mismatched)
	}
	if run.Fatal != nil {
		m["fatal"] = map[string]interface{}{
			"kind":    run.Fatal.Kind,
			"message": run.Fatal.Message,
			"fatal":   run.Fatal.Fatal,
		}
	}
	return m
}

func stringsToList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// --- Service descriptor ---

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: stringHandler("Evaluate", CalculatorServer.Evaluate)},
		{MethodName: "GetEvaluation", Handler: stringHandler("GetEvaluation", CalculatorServer.GetEvaluation)},
		{MethodName: "RunBatch", Handler: stringHandler("RunBatch", CalculatorServer.RunBatch)},
		{MethodName: "ListBatches", Handler: listBatchesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calc/v1/calculator.proto",
}

type stringMethod func(CalculatorServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)

func stringHandler(method string, call stringMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalculatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CalculatorServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func listBatchesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).ListBatches(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/ListBatches",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CalculatorServer).ListBatches(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
