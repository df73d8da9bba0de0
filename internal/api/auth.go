package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"staybook/internal/auth"
	"staybook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	authorizationKey = "authorization"
	clientKeyUnknown = "unknown"
)

// HTTPAuth resolves the bearer token into a caller and applies per-caller
// rate limiting. Requests without a token pass through anonymously; the
// handlers that need a caller reject them.
type HTTPAuth struct {
	gate    *auth.Gate
	limiter *rateLimiter
}

func NewHTTPAuth(gate *auth.Gate, limiter *rateLimiter) *HTTPAuth {
	return &HTTPAuth{gate: gate, limiter: limiter}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := remoteHost(r.RemoteAddr)

		if token := auth.ExtractBearer(r.Header.Get("Authorization")); token != "" {
			caller, err := a.resolve(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx = auth.WithCaller(ctx, caller)
			key = callerKey(caller)
		}

		if !a.limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) resolve(token string) (models.Caller, error) {
	if a.gate == nil {
		return models.Caller{}, auth.ErrInvalidToken
	}
	return a.gate.Resolve(token)
}

// requireCaller returns the authenticated caller or ErrMissingToken.
func requireCaller(ctx context.Context) (models.Caller, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return models.Caller{}, auth.ErrMissingToken
	}
	return caller, nil
}

func callerKey(c models.Caller) string {
	return fmt.Sprintf("%s:%d", c.Role, c.ID)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return clientKeyUnknown
}

// AuthInterceptor is the gRPC counterpart of HTTPAuth. The token is read
// from the authorization metadata key.
type AuthInterceptor struct {
	gate    *auth.Gate
	limiter *rateLimiter
}

func NewAuthInterceptor(gate *auth.Gate, limiter *rateLimiter) *AuthInterceptor {
	return &AuthInterceptor{gate: gate, limiter: limiter}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := peerKey(ctx)

		md, _ := metadata.FromIncomingContext(ctx)
		if token := auth.ExtractBearer(first(md.Get(authorizationKey))); token != "" {
			if a.gate == nil {
				return nil, status.Error(codes.Unauthenticated, auth.ErrInvalidToken.Error())
			}
			caller, err := a.gate.Resolve(token)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
			ctx = auth.WithCaller(ctx, caller)
			key = callerKey(caller)
		}

		if !a.limiter.allow(key) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

func peerKey(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return remoteHost(p.Addr.String())
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
