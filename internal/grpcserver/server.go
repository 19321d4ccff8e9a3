// Package grpcserver implements the JobTracker gRPC server.
//
// It delegates all business logic to query.Service, tracking.Mutator and
// the ingestion trigger, and handles only the gRPC transport concerns:
// argument extraction, error mapping and conversion to Struct payloads.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/jobhunt/internal/model"
	"jobmate/jobhunt/internal/query"
	"jobmate/jobhunt/internal/tracking"
)

// Ingester is the manual ingestion trigger.
type Ingester interface {
	Run(ctx context.Context) (model.IngestResult, error)
}

// Server implements JobTrackerServer.
type Server struct {
	queries  *query.Service
	mutator  *tracking.Mutator
	ingester Ingester
}

var _ JobTrackerServer = (*Server)(nil)

// NewServer constructs a Server.
func NewServer(queries *query.Service, mutator *tracking.Mutator, ingester Ingester) *Server {
	return &Server{queries: queries, mutator: mutator, ingester: ingester}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// ListJobs takes {location, search, status, favorite, page, pageSize}.
func (s *Server) ListJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := intField(req, "page")
	if err != nil {
		return nil, err
	}
	pageSize, err := intField(req, "pageSize")
	if err != nil {
		return nil, err
	}
	filter := query.ListFilter{
		Location: stringField(req, "location"),
		Search:   stringField(req, "search"),
		Status:   stringField(req, "status"),
		Favorite: boolField(req, "favorite"),
	}

	res, err := s.queries.ListPostings(ctx, filter, int(page), int(pageSize))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

// GetJob takes {id}.
func (s *Server) GetJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	v, err := s.queries.GetPosting(ctx, id)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(v)
}

// ToggleFavorite takes {id}.
func (s *Server) ToggleFavorite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	rec, err := s.mutator.ToggleFavorite(ctx, id)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(rec)
}

// SetStatus takes {id, status}.
func (s *Server) SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	rec, err := s.mutator.SetStatus(ctx, id, stringField(req, "status"))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(rec)
}

// SetNotes takes {id, notes}. A missing notes key is rejected; "" clears.
func (s *Server) SetNotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	v, ok := req.GetFields()["notes"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "notes is required")
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "notes must be a string")
	}
	rec, err := s.mutator.SetNotes(ctx, id, sv.StringValue)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(rec)
}

// TriggerScrape runs ingestion now.
func (s *Server) TriggerScrape(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.ingester == nil {
		return nil, status.Error(codes.Unavailable, "ingestion is not configured")
	}
	res, err := s.ingester.Run(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

// LatestScrape returns the latest audit, or {"message": "No scrapes yet"}.
func (s *Server) LatestScrape(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.queries.LatestAudit(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	if a == nil {
		return structpb.NewStruct(map[string]any{"message": "No scrapes yet"})
	}
	return toStruct(a)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	if errors.Is(err, model.ErrUpstreamUnavailable) {
		return status.Error(codes.Unavailable, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func boolField(req *structpb.Struct, key string) bool {
	return req.GetFields()[key].GetBoolValue()
}

// intField reads an optional non-negative integer. Missing means 0.
func intField(req *structpb.Struct, key string) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", key)
	}
	return int64(f), nil
}

func idField(req *structpb.Struct) (int64, error) {
	id, err := intField(req, "id")
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, status.Error(codes.InvalidArgument, "id is required")
	}
	return id, nil
}

// UnaryLogger logs every call with its status code and latency.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "latency_ms", time.Since(start).Milliseconds()}
		switch code {
		case codes.OK:
			logger.Info("rpc completed", attrs...)
		case codes.Internal, codes.Unknown:
			logger.Error("rpc failed", append(attrs, "err", err)...)
		default:
			logger.Warn("rpc rejected", append(attrs, "err", fmt.Sprint(err))...)
		}
		return resp, err
	}
}
