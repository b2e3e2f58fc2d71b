package reasoning

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire names of the reasoning sidecar service. Requests and replies are
// google.protobuf.Struct values:
//
//	request:  {"model": string, "json": bool, "messages": [{"role", "content"}]}
//	response: {"content": string} or {"error": string}
const (
	ServiceName    = "learnhub.reasoning.v1.Reasoning"
	CompleteMethod = "/" + ServiceName + "/Complete"
)

// Server is implemented by reasoning sidecars written in Go.
type Server interface {
	Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func completeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Complete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompleteMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Complete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the reasoning service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Complete", Handler: completeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "learnhub/reasoning/v1/reasoning.proto",
}

// RegisterServer registers srv on s.
func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

// ClientServer adapts a Client to the gRPC Server interface, so any backend
// can be exposed as a sidecar.
type ClientServer struct {
	Client Client
}

// Complete implements Server.
func (s ClientServer) Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cr := decodeCompletionRequest(req)
	content, err := s.Client.Complete(ctx, cr)
	if err != nil {
		return structpb.NewStruct(map[string]interface{}{"error": err.Error()})
	}
	return structpb.NewStruct(map[string]interface{}{"content": content})
}

func encodeCompletionRequest(req CompletionRequest) (*structpb.Struct, error) {
	messages := make([]interface{}, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]interface{}{"role": m.Role, "content": m.Content})
	}
	in, err := structpb.NewStruct(map[string]interface{}{
		"model":    req.Model,
		"json":     req.JSON,
		"messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}
	return in, nil
}

func decodeCompletionRequest(in *structpb.Struct) CompletionRequest {
	fields := in.GetFields()
	req := CompletionRequest{
		Model: fields["model"].GetStringValue(),
		JSON:  fields["json"].GetBoolValue(),
	}
	for _, v := range fields["messages"].GetListValue().GetValues() {
		m := v.GetStructValue().GetFields()
		req.Messages = append(req.Messages, Message{
			Role:    m["role"].GetStringValue(),
			Content: m["content"].GetStringValue(),
		})
	}
	return req
}
