package verifyrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// VerifyServer is the server API for the Verify gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package does
// not require a protoc/codegen toolchain. Keys are "namespace/relative-path"
// strings.
//
// Proto definition: verify.proto.
type VerifyServer interface {
	GetCommitment(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	GetRecord(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	HasDocument(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedVerifyServer can be embedded to have forward compatible implementations.
type UnimplementedVerifyServer struct{}

func (UnimplementedVerifyServer) GetCommitment(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCommitment not implemented")
}
func (UnimplementedVerifyServer) GetRecord(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRecord not implemented")
}
func (UnimplementedVerifyServer) HasDocument(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method HasDocument not implemented")
}

// RegisterVerifyServer registers the Verify service on a gRPC server.
func RegisterVerifyServer(s grpc.ServiceRegistrar, srv VerifyServer) {
	s.RegisterService(&Verify_ServiceDesc, srv)
}

// VerifyClient is the client API for the Verify gRPC service.
type VerifyClient interface {
	GetCommitment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	HasDocument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type verifyClient struct{ cc grpc.ClientConnInterface }

func NewVerifyClient(cc grpc.ClientConnInterface) VerifyClient { return &verifyClient{cc: cc} }

func (c *verifyClient) GetCommitment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/sigillo.verify.v1.Verify/GetCommitment", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *verifyClient) GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/sigillo.verify.v1.Verify/GetRecord", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *verifyClient) HasDocument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := c.cc.Invoke(ctx, "/sigillo.verify.v1.Verify/HasDocument", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Verify_GetCommitment_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerifyServer).GetCommitment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/sigillo.verify.v1.Verify/GetCommitment"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VerifyServer).GetCommitment(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Verify_GetRecord_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerifyServer).GetRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/sigillo.verify.v1.Verify/GetRecord"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VerifyServer).GetRecord(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Verify_HasDocument_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerifyServer).HasDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/sigillo.verify.v1.Verify/HasDocument"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VerifyServer).HasDocument(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Verify_ServiceDesc is the grpc.ServiceDesc for the Verify service.
var Verify_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "sigillo.verify.v1.Verify",
	HandlerType: (*VerifyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCommitment", Handler: _Verify_GetCommitment_Handler},
		{MethodName: "GetRecord", Handler: _Verify_GetRecord_Handler},
		{MethodName: "HasDocument", Handler: _Verify_HasDocument_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verify.proto",
}
