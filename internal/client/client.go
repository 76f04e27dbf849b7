// Package client is the gRPC client of the node's KernelService.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/node"
	"github.com/ppiankov/chainkernel/internal/server"
)

// DefaultTimeout bounds every RPC.
const DefaultTimeout = 5 * time.Second

// Call names a contract method. From and To accept anything the node
// resolves: "@vault", "vault", a hex address, or for From a human name.
type Call struct {
	From   string
	To     string
	Method string
	Args   []any
	Value  uint64
}

func (c Call) toStruct() (*structpb.Struct, error) {
	args := c.Args
	if args == nil {
		args = []any{}
	}
	m := map[string]any{
		"from":   c.From,
		"to":     c.To,
		"method": c.Method,
		"args":   args,
	}
	if c.Value > 0 {
		m["value"] = c.Value
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}
	return s, nil
}

// Client connects to a node's gRPC server.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// New creates a gRPC client connected to the given address.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// Submit runs call as a transaction. When the node reverts it, the
// reverted receipt is returned together with the error.
func (c *Client) Submit(ctx context.Context, call Call) (*ledger.Receipt, error) {
	in, err := call.toStruct()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, server.SubmitMethod, in, out); err != nil {
		return revertedReceipt(err), err
	}
	r := &ledger.Receipt{}
	if err := server.FromStruct(out, r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return r, nil
}

// Query runs call as a view and returns its JSON-decoded return values.
func (c *Client) Query(ctx context.Context, call Call) ([]any, error) {
	in, err := call.toStruct()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, server.QueryMethod, in, out); err != nil {
		return nil, err
	}
	return out.GetFields()["return"].GetListValue().AsSlice(), nil
}

// Addresses fetches the node's genesis components.
func (c *Client) Addresses(ctx context.Context) (node.Addresses, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var addrs node.Addresses
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, server.AddressesMethod, &emptypb.Empty{}, out); err != nil {
		return addrs, err
	}
	if err := server.FromStruct(out, &addrs); err != nil {
		return addrs, fmt.Errorf("failed to decode addresses: %w", err)
	}
	return addrs, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func revertedReceipt(err error) *ledger.Receipt {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		r := &ledger.Receipt{}
		if server.FromStruct(s, r) == nil {
			return r
		}
	}
	return nil
}
