package verifyrpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sigillo.dev/sigillo/model"
)

// mapErr converts store errors into gRPC statuses for the wire.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch model.CodeOf(err) {
	case model.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case model.ErrPathViolation, model.ErrInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts gRPC statuses back into the error taxonomy on the client.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return model.NewError(model.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return model.NewError(model.ErrInvalidInput, st.Message())
	default:
		return err
	}
}
