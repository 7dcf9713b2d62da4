package interceptor

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"boxrental-backend/internal/config"
	"boxrental-backend/internal/security"
)

type AuthInterceptor struct {
	tokenManager security.TokenManager
}

func NewAuthInterceptor(tm security.TokenManager) *AuthInterceptor {
	return &AuthInterceptor{tokenManager: tm}
}

// Unary returns a server interceptor function to authenticate and authorize unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		level := config.GetSecurityLevel(info.FullMethod)

		// Never trust identity headers sent by the client.
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			md = metadata.New(nil)
		} else {
			md = md.Copy()
		}
		md.Delete("user-id")
		md.Delete("user-role")

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			return handler(metadata.NewIncomingContext(ctx, md), req)
		}

		// Extract token from metadata
		token, err := i.extractToken(md)
		if err != nil {
			return nil, err
		}

		// Validate token
		claims, err := i.tokenManager.ValidateToken(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}

		if err := i.checkSecurityLevel(level, claims); err != nil {
			return nil, err
		}

		md.Set("user-id", strconv.FormatInt(claims.UserID, 10))
		md.Set("user-role", string(claims.Role))
		newCtx := metadata.NewIncomingContext(ctx, md)

		return handler(newCtx, req)
	}
}

func (i *AuthInterceptor) extractToken(md metadata.MD) (string, error) {
	authHeader := md["authorization"]
	if len(authHeader) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}

	token := authHeader[0]
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}

	return token, nil
}

func (i *AuthInterceptor) checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) error {
	if claims.Type != security.TokenTypeAccess {
		return status.Error(codes.PermissionDenied, "access token required")
	}
	if level == config.SecurityStaff && !claims.Caller().IsStaff() {
		return status.Error(codes.PermissionDenied, "staff token required")
	}
	return nil
}
