package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chainkernel.v1.KernelService"

// Full method names, as used by clients with grpc.ClientConn.Invoke.
const (
	SubmitMethod    = "/" + ServiceName + "/Submit"
	QueryMethod     = "/" + ServiceName + "/Query"
	AddressesMethod = "/" + ServiceName + "/Addresses"
)

// KernelServiceServer is the server side of KernelService. Requests and
// replies are structpb.Struct values so the service needs no generated
// message types.
type KernelServiceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Addresses(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterKernelServiceServer registers srv on s.
func RegisterKernelServiceServer(s grpc.ServiceRegistrar, srv KernelServiceServer) {
	s.RegisterService(&KernelServiceDesc, srv)
}

// KernelServiceDesc describes KernelService for grpc.Server.
var KernelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KernelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: structHandler(SubmitMethod, KernelServiceServer.Submit)},
		{MethodName: "Query", Handler: structHandler(QueryMethod, KernelServiceServer.Query)},
		{MethodName: "Addresses", Handler: addressesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chainkernel/v1/kernel.proto",
}

type structMethod func(KernelServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(KernelServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(KernelServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func addressesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServiceServer).Addresses(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AddressesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KernelServiceServer).Addresses(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ToStruct converts any JSON-encodable value with an object shape into a
// Struct. Numbers become doubles.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("reply is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into dst through its JSON form.
func FromStruct(s *structpb.Struct, dst any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
