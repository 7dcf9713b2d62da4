package grpc

import (
	"context"
	"strconv"

	"boxrental-backend/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// GetCallerFromContext extracts the caller the auth interceptor placed in
// the gRPC metadata. It expects headers named "user-id" and "user-role".
func GetCallerFromContext(ctx context.Context) (domain.Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Caller{}, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	userIDs := md.Get("user-id")
	roles := md.Get("user-role")
	if len(userIDs) == 0 || len(roles) == 0 {
		return domain.Caller{}, status.Errorf(codes.Unauthenticated, "caller is not provided in metadata")
	}

	userID, err := strconv.ParseInt(userIDs[0], 10, 64)
	if err != nil {
		return domain.Caller{}, status.Errorf(codes.InvalidArgument, "invalid user_id format: %v", err)
	}

	return domain.Caller{UserID: userID, Role: domain.Role(roles[0])}, nil
}

// clientKey identifies an anonymous caller for rate limiting.
func clientKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if fwd := md.Get("x-forwarded-for"); len(fwd) > 0 && fwd[0] != "" {
			return fwd[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
