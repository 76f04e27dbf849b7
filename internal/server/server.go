// Package server exposes the node over gRPC: Submit runs a transaction,
// Query runs a view call, Addresses lists the genesis components.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/metrics"
	"github.com/ppiankov/chainkernel/internal/node"
	"github.com/ppiankov/chainkernel/internal/ratelimit"
)

// Config holds gRPC server configuration.
type Config struct {
	Addr       string
	PolicyPath string
	RateLimits ratelimit.RateLimitConfig
}

// Server implements KernelService on top of a node.
type Server struct {
	node    *node.Node
	cfg     Config
	log     *logrus.Entry
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
	now     func() time.Time

	mu         sync.Mutex
	policyHash string

	grpcServer *grpc.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logrus.Entry) Option { return func(s *Server) { s.log = l } }

// WithMetrics counts rate-limited submissions.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithClock overrides the clock used for rate limiting.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New creates a gRPC server for n.
func New(n *node.Node, cfg Config, opts ...Option) *Server {
	s := &Server{
		node:       n,
		cfg:        cfg,
		limiter:    ratelimit.New(cfg.RateLimits),
		now:        time.Now,
		grpcServer: grpc.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "grpc")
	RegisterKernelServiceServer(s.grpcServer, s)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on the given listener.
func (s *Server) ServeOn(lis net.Listener) error {
	s.log.WithField("addr", lis.Addr().String()).Info("grpc server listening")
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Submit implements the Submit RPC. The request carries from, to,
// method, args and an optional value; the reply is the receipt.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	addrs := s.node.Addresses()
	msg, err := parseMsg(req, addrs, true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if res := s.limiter.Allow(msg.From.Hex(), s.now()); res.Exceeded {
		if s.metrics != nil {
			s.metrics.RateLimited()
		}
		s.log.WithFields(logrus.Fields{"from": msg.From.Short(), "method": msg.Method}).Warn(res.Reason)
		return nil, status.Error(codes.ResourceExhausted, res.Reason)
	}

	r, err := s.node.Submit(ctx, msg)
	if err != nil {
		return nil, toStatus(err, r)
	}
	return ToStruct(r)
}

// Query implements the Query RPC. The reply is {"return": [...]}.
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg, err := parseMsg(req, s.node.Addresses(), false)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ret, err := s.node.Query(ctx, msg.From, msg.To, msg.Method, msg.Args...)
	if err != nil {
		return nil, toStatus(err, nil)
	}
	if ret == nil {
		ret = []any{}
	}
	return ToStruct(map[string]any{"return": ret})
}

// Addresses implements the Addresses RPC.
func (s *Server) Addresses(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return ToStruct(s.node.Addresses())
}

// ReloadPolicy re-reads the kill switch policy file and applies it when
// its hash changed. Called by the Reloader on file change.
func (s *Server) ReloadPolicy(ctx context.Context) error {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	p, hash, err := killswitch.LoadPolicy(s.cfg.PolicyPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.policyHash {
		return nil
	}
	receipts, err := s.node.ApplyKillSwitchPolicy(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to apply kill switch policy: %w", err)
	}
	s.policyHash = hash
	s.log.WithFields(logrus.Fields{
		"policy_hash":  hash,
		"transactions": len(receipts),
	}).Info("kill switch policy loaded")
	return nil
}

// PolicyHash returns the hash of the last applied policy file.
func (s *Server) PolicyHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policyHash
}

// parseMsg reads a call from a request struct. Strings starting with "@"
// anywhere in args are replaced by the named component's address.
func parseMsg(req *structpb.Struct, addrs node.Addresses, needFrom bool) (ledger.Msg, error) {
	var msg ledger.Msg
	fields := req.GetFields()

	from := fields["from"].GetStringValue()
	if from != "" || needFrom {
		addr, err := addrs.Entity(from)
		if err != nil {
			return msg, fmt.Errorf("from: %w", err)
		}
		msg.From = addr
	}

	to, err := addrs.Resolve(fields["to"].GetStringValue())
	if err != nil {
		return msg, fmt.Errorf("to: %w", err)
	}
	msg.To = to

	msg.Method = fields["method"].GetStringValue()
	if msg.Method == "" {
		return msg, errors.New("method is required")
	}

	if v, ok := fields["value"]; ok {
		n := v.GetNumberValue()
		if n < 0 || n != math.Trunc(n) || n >= 1<<64 {
			return msg, fmt.Errorf("value: invalid amount %v", n)
		}
		msg.Value = uint64(n)
	}

	if list := fields["args"].GetListValue(); list != nil {
		args := list.AsSlice()
		for i, a := range args {
			resolved, err := resolveRefs(a, addrs)
			if err != nil {
				return msg, fmt.Errorf("arg %d: %w", i, err)
			}
			args[i] = resolved
		}
		msg.Args = args
	}
	return msg, nil
}

func resolveRefs(v any, addrs node.Addresses) (any, error) {
	switch x := v.(type) {
	case string:
		if !strings.HasPrefix(x, "@") {
			return x, nil
		}
		addr, err := addrs.Resolve(x)
		if err != nil {
			return nil, err
		}
		return addr.Hex(), nil
	case []any:
		for i := range x {
			r, err := resolveRefs(x[i], addrs)
			if err != nil {
				return nil, err
			}
			x[i] = r
		}
		return x, nil
	case map[string]any:
		for k := range x {
			r, err := resolveRefs(x[k], addrs)
			if err != nil {
				return nil, err
			}
			x[k] = r
		}
		return x, nil
	default:
		return v, nil
	}
}

// toStatus maps node errors to gRPC codes. Reverts keep their receipt in
// the status details.
func toStatus(err error, r *ledger.Receipt) error {
	if errors.Is(err, node.ErrReservedSender) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	reason := ledger.Reason(err)
	if reason == "" {
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.FailedPrecondition
	if AuthReason(reason) {
		code = codes.PermissionDenied
	}
	st := status.New(code, err.Error())
	if r != nil {
		if detail, err := ToStruct(r); err == nil {
			if withDetail, err := st.WithDetails(detail); err == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}

// AuthReason reports whether a revert reason is a permission failure.
func AuthReason(reason string) bool {
	return strings.Contains(reason, "_AUTH_") ||
		strings.HasSuffix(reason, "_DENIED") ||
		strings.HasSuffix(reason, "_NOT_OWNER")
}
