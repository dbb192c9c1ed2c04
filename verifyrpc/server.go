// Package verifyrpc exposes the verifier surface over gRPC: fetch the
// commitment artifact bytes and the metadata record for a stored document,
// so third parties can re-hash the commitment standalone.
package verifyrpc

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/model"
)

// Server exposes a docstore.Store over the Verify gRPC service.
type Server struct {
	UnimplementedVerifyServer
	Store *docstore.Store
}

// splitKey parses "namespace/relative-path".
func splitKey(key string) (namespace, relPath string, err error) {
	namespace, relPath, ok := strings.Cut(key, "/")
	if !ok || namespace == "" || relPath == "" {
		return "", "", status.Error(codes.InvalidArgument, "key must be namespace/relative-path")
	}
	return namespace, relPath, nil
}

func (s *Server) GetCommitment(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	namespace, relPath, err := splitKey(in.GetValue())
	if err != nil {
		return nil, err
	}
	b, err := s.Store.Commitment(namespace, relPath)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) GetRecord(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	namespace, relPath, err := splitKey(in.GetValue())
	if err != nil {
		return nil, err
	}
	rec, err := s.Store.Record(namespace, relPath)
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "record serialization failed")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) HasDocument(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	namespace, relPath, err := splitKey(in.GetValue())
	if err != nil {
		return nil, err
	}
	_, err = s.Store.Content(namespace, relPath)
	if err != nil {
		if model.IsNotFound(err) || os.IsNotExist(err) {
			return wrapperspb.Bool(false), nil
		}
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}
