package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "extraction.v1.ExtractionService"

const (
	methodExtractFile   = "/" + ServiceName + "/ExtractFile"
	methodGetJobStatus  = "/" + ServiceName + "/GetJobStatus"
	methodGetExtraction = "/" + ServiceName + "/GetExtraction"
)

// ExtractionServer is the server API for the extraction service. Requests and replies
// are google.protobuf.Struct messages.
type ExtractionServer interface {
	ExtractFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJobStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetExtraction(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterExtractionServer registers srv on s.
func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

type unaryCall func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ExtractionServiceDesc describes the extraction service for grpc.Server.RegisterService.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ExtractFile",
			Handler:    unaryHandler(methodExtractFile, ExtractionServer.ExtractFile),
		},
		{
			MethodName: "GetJobStatus",
			Handler:    unaryHandler(methodGetJobStatus, ExtractionServer.GetJobStatus),
		},
		{
			MethodName: "GetExtraction",
			Handler:    unaryHandler(methodGetExtraction, ExtractionServer.GetExtraction),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "extraction/v1/extraction.proto",
}

// ExtractionClient calls the extraction service.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ExtractFile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodExtractFile, in, opts...)
}

func (c *ExtractionClient) GetJobStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetJobStatus, in, opts...)
}

func (c *ExtractionClient) GetExtraction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetExtraction, in, opts...)
}
