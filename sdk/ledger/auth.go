package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationHeader = "authorization"

// TokenCredentials mints a short-lived HS256 bearer token for every call.
type TokenCredentials struct {
	secret        []byte
	issuer        string
	subject       string
	ttl           time.Duration
	allowInsecure bool
	now           func() time.Time
}

// NewTokenCredentials signs tokens with secret. Subject names the caller,
// typically the payer account. allowInsecure permits plaintext transports.
func NewTokenCredentials(secret []byte, issuer, subject string, ttl time.Duration, allowInsecure bool) (*TokenCredentials, error) {
	if len(secret) == 0 {
		return nil, errors.New("sdk/ledger: token secret required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TokenCredentials{
		secret:        secret,
		issuer:        strings.TrimSpace(issuer),
		subject:       strings.TrimSpace(subject),
		ttl:           ttl,
		allowInsecure: allowInsecure,
		now:           time.Now,
	}, nil
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *TokenCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   c.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, err
	}
	return map[string]string{authorizationHeader: "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *TokenCredentials) RequireTransportSecurity() bool { return !c.allowInsecure }

// TokenAuthInterceptor rejects unary calls without a valid bearer token
// signed with secret. A non-empty issuer must match the token's.
func TokenAuthInterceptor(secret []byte, issuer string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(authorizationHeader)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		raw, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization header")
		}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}, opts...)
		if err != nil || !token.Valid {
			return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		return handler(ctx, req)
	}
}
