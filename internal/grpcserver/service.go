package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobhunt.v1.JobTracker"

// Method names.
const (
	MethodListJobs       = "ListJobs"
	MethodGetJob         = "GetJob"
	MethodToggleFavorite = "ToggleFavorite"
	MethodSetStatus      = "SetStatus"
	MethodSetNotes       = "SetNotes"
	MethodTriggerScrape  = "TriggerScrape"
	MethodLatestScrape   = "LatestScrape"
)

// JobTrackerServer is the server API. Requests and responses are
// google.protobuf.Struct values carrying the same JSON shapes as the REST
// surface.
type JobTrackerServer interface {
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleFavorite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetNotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TriggerScrape(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LatestScrape(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(JobTrackerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JobTrackerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(JobTrackerServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes JobTracker for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobTrackerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListJobs, JobTrackerServer.ListJobs),
		unary(MethodGetJob, JobTrackerServer.GetJob),
		unary(MethodToggleFavorite, JobTrackerServer.ToggleFavorite),
		unary(MethodSetStatus, JobTrackerServer.SetStatus),
		unary(MethodSetNotes, JobTrackerServer.SetNotes),
		unary(MethodTriggerScrape, JobTrackerServer.TriggerScrape),
		unary(MethodLatestScrape, JobTrackerServer.LatestScrape),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobhunt/v1/tracker.proto",
}

// Register mounts srv on s.
func Register(s grpc.ServiceRegistrar, srv JobTrackerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the "/service/method" path of a JobTracker method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Client calls JobTracker methods over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method with req and returns the decoded response.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
