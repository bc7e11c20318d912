package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/geodat"
	"github.com/TomasB/geolookup/internal/handler/check"
)

// Handler implements GeoLookupService.
type Handler struct {
	lookup data.Lookup
}

var _ GeoLookupServer = (*Handler)(nil)

// NewHandler creates a new gRPC handler with the given Lookup.
func NewHandler(lookup data.Lookup) *Handler {
	return &Handler{lookup: lookup}
}

func queryOf(req *wrapperspb.StringValue) (string, error) {
	if req == nil {
		return "", status.Error(codes.InvalidArgument, "request is required")
	}
	if req.GetValue() == "" {
		return "", status.Error(codes.InvalidArgument, "query is required")
	}
	return req.GetValue(), nil
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode record")
	}
	return s, nil
}

// Country returns the country record for the queried address or hostname.
func (h *Handler) Country(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	q, err := queryOf(req)
	if err != nil {
		return nil, err
	}
	rec, err := h.lookup.Country(ctx, q)
	if err != nil {
		slog.Error("country lookup failed", "query", q, "error", err)
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	if rec == nil {
		return nil, status.Error(codes.NotFound, "no record found")
	}
	return toStruct(rec.In(geodat.UTF8).Fields())
}

// City returns the city record for the queried address or hostname.
func (h *Handler) City(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	q, err := queryOf(req)
	if err != nil {
		return nil, err
	}
	rec, err := h.lookup.City(ctx, q)
	if err != nil {
		slog.Error("city lookup failed", "query", q, "error", err)
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	if rec == nil {
		return nil, status.Error(codes.NotFound, "no record found")
	}
	return toStruct(rec.In(geodat.UTF8).Fields())
}

// Check validates whether an IP is allowed for the given country list.
func (h *Handler) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	ip := req.GetFields()["ip"].GetStringValue()
	if ip == "" {
		return nil, status.Error(codes.InvalidArgument, "ip is required")
	}
	var allowed []string
	for _, v := range req.GetFields()["allowed_countries"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			allowed = append(allowed, s)
		}
	}
	if len(allowed) == 0 {
		return nil, status.Error(codes.InvalidArgument, "allowed_countries is required")
	}
	if !check.Valid(ip) {
		return nil, status.Error(codes.InvalidArgument, "invalid IP address")
	}

	country, err := check.Country(ctx, h.lookup, ip)
	if err != nil {
		slog.Error("country lookup failed", "ip", ip, "error", err)
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	return toStruct(map[string]any{
		"allowed": check.Allowed(country, allowed),
		"country": country,
		"error":   "",
	})
}
