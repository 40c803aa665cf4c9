package grpcapi

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/astatarinov/calc/pkg/types"
)

// Client calls a remote Calculator service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the service at addr. The connection is made
// lazily on the first call.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Evaluate evaluates expression remotely. Calculator failures come back as
// *types.CalcError, so types.IsFatal works the same as for local evaluation.
func (c *Client) Evaluate(ctx context.Context, expression string) (types.Number, error) {
	out, err := c.EvaluateRecord(ctx, expression)
	if err != nil {
		return types.Number{}, err
	}
	return numberFromRecord(out)
}

// EvaluateRecord evaluates expression remotely and returns the recorded
// evaluation.
func (c *Client) EvaluateRecord(ctx context.Context, expression string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Evaluate", wrapperspb.String(expression), out); err != nil {
		return nil, decodeError(err)
	}
	return out, nil
}

// GetEvaluation fetches a recorded evaluation by ID or full name.
func (c *Client) GetEvaluation(ctx context.Context, name string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetEvaluation", wrapperspb.String(name), out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunBatch runs a stored batch by ID.
func (c *Client) RunBatch(ctx context.Context, batchID string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/RunBatch", wrapperspb.String(batchID), out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBatches returns the names of the stored batches.
func (c *Client) ListBatches(ctx context.Context) ([]string, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/ListBatches", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}

	var names []string
	for _, v := range out.GetFields()["batches"].GetListValue().GetValues() {
		names = append(names, v.GetStructValue().GetFields()["name"].GetStringValue())
	}
	return names, nil
}

// decodeError rebuilds a CalcError from the status details set by the
// server. Other errors are returned unchanged.
func decodeError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		pb, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		f := pb.GetFields()
		kind := f["kind"].GetStringValue()
		if kind == "" {
			continue
		}
		ce := &types.CalcError{
			Kind:     types.ErrorKind(kind),
			Message:  f["message"].GetStringValue(),
			Operator: f["operator"].GetStringValue(),
			Pos:      -1,
		}
		if pos, ok := f["position"]; ok {
			ce.Pos = int(pos.GetNumberValue())
		}
		if sym := []rune(f["symbol"].GetStringValue()); len(sym) > 0 {
			ce.Symbol = sym[0]
		}
		return ce
	}
	return err
}

func numberFromRecord(rec *structpb.Struct) (types.Number, error) {
	f := rec.GetFields()
	typ, ok := types.ParseNumberType(f["resultType"].GetStringValue())
	if !ok {
		return types.Number{}, fmt.Errorf("evaluation %s has no result", f["name"].GetStringValue())
	}

	if typ == types.TypeInt {
		// Struct numbers are doubles, so ints come from the display text.
		display := f["display"].GetStringValue()
		i, err := strconv.ParseInt(display, 10, 64)
		if err != nil {
			return types.Number{}, fmt.Errorf("bad int result %q: %w", display, err)
		}
		return types.NewInt(i), nil
	}
	n, _ := types.NumberFromGo(f["result"].GetNumberValue())
	return n, nil
}
