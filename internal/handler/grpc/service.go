package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "geolookup.v1.GeoLookupService"

const (
	countryMethod = "/" + ServiceName + "/Country"
	cityMethod    = "/" + ServiceName + "/City"
	checkMethod   = "/" + ServiceName + "/Check"
)

// GeoLookupServer is the server API of GeoLookupService. Records travel
// as Structs keyed like the HTTP JSON bodies.
type GeoLookupServer interface {
	Country(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	City(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes GeoLookupService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeoLookupServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Country", Handler: countryHandler},
		{MethodName: "City", Handler: cityHandler},
		{MethodName: "Check", Handler: checkHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geolookup/v1/geolookup.proto",
}

// Register adds srv to the registrar.
func Register(s grpc.ServiceRegistrar, srv GeoLookupServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func countryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoLookupServer).Country(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: countryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GeoLookupServer).Country(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func cityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoLookupServer).City(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: cityMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GeoLookupServer).City(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoLookupServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GeoLookupServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls GeoLookupService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Country returns the country record for query.
func (c *Client) Country(ctx context.Context, query string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, countryMethod, wrapperspb.String(query), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// City returns the city record for query.
func (c *Client) City(ctx context.Context, query string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, cityMethod, wrapperspb.String(query), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Check asks whether ip geolocates to one of the allowed countries.
func (c *Client) Check(ctx context.Context, ip string, allowed []string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := NewCheckRequest(ip, allowed)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewCheckRequest builds the Check request message.
func NewCheckRequest(ip string, allowed []string) (*structpb.Struct, error) {
	list := make([]any, len(allowed))
	for i, a := range allowed {
		list[i] = a
	}
	return structpb.NewStruct(map[string]any{
		"ip":                ip,
		"allowed_countries": list,
	})
}
