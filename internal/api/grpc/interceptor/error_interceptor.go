package interceptor

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
)

// ErrorUnary converts engine errors into gRPC statuses. Errors that already
// carry a status pass through untouched.
func ErrorUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		st := ToStatus(err)
		if st.Code() == codes.Internal {
			logger.Error("rpc failed", "method", info.FullMethod, "error", err)
		}
		return nil, st.Err()
	}
}

// ToStatus maps an engine error to the status clients see. Internal errors
// are not echoed back.
func ToStatus(err error) *status.Status {
	if errors.Is(err, context.Canceled) {
		return status.New(codes.Canceled, "request canceled")
	}
	var code codes.Code
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		code = codes.InvalidArgument
	case domain.KindInsufficientInventory, domain.KindInvalidStateTransition:
		code = codes.FailedPrecondition
	case domain.KindConcurrentModification:
		code = codes.Aborted
	case domain.KindAllocationTimeout:
		code = codes.Unavailable
	case domain.KindCredentialMismatch, domain.KindNotFound:
		code = codes.NotFound
	case domain.KindForbidden:
		code = codes.PermissionDenied
	case domain.KindRateLimited:
		code = codes.ResourceExhausted
	default:
		return status.New(codes.Internal, "internal error")
	}
	return status.New(code, err.Error())
}
