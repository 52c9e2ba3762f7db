package dial

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Option controls how node connections are built.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(cfg *config) { f(cfg) }

type config struct {
	transport   credentials.TransportCredentials
	callTimeout time.Duration
	headers     metadata.MD
	userAgent   string
	extra       []grpc.DialOption
}

// WithTransportCredentials uses creds for every connection.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return optionFunc(func(cfg *config) { cfg.transport = creds })
}

// WithTLSConfig uses a clone of tlsCfg, raising MinVersion to TLS 1.2.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return optionFunc(func(cfg *config) {
		clone := defaultTLSConfig()
		if tlsCfg != nil {
			clone = tlsCfg.Clone()
			if clone.MinVersion < tls.VersionTLS12 {
				clone.MinVersion = tls.VersionTLS12
			}
		}
		cfg.transport = credentials.NewTLS(clone)
	})
}

// WithTLSFromFiles loads a client certificate pair and CA bundle. Empty
// paths are skipped.
func WithTLSFromFiles(certPath, keyPath, caPath string) (Option, error) {
	creds, err := TLSCredentialsFromFiles(certPath, keyPath, caPath)
	if err != nil {
		return nil, err
	}
	return WithTransportCredentials(creds), nil
}

// WithInsecure dials in plaintext. Local networks only.
func WithInsecure() Option {
	return optionFunc(func(cfg *config) { cfg.transport = insecure.NewCredentials() })
}

// WithContextDialer replaces the network dialer, e.g. with a bufconn listener.
func WithContextDialer(dialer func(context.Context, string) (net.Conn, error)) Option {
	return optionFunc(func(cfg *config) {
		cfg.extra = append(cfg.extra, grpc.WithContextDialer(dialer))
	})
}

// WithPerRPCCredentials attaches per-call credentials.
func WithPerRPCCredentials(creds credentials.PerRPCCredentials) Option {
	return optionFunc(func(cfg *config) {
		cfg.extra = append(cfg.extra, grpc.WithPerRPCCredentials(creds))
	})
}

// WithCallTimeout bounds each unary call that arrives without a deadline.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(cfg *config) { cfg.callTimeout = d })
}

// WithHeader adds outgoing metadata to every call.
func WithHeader(key, value string) Option {
	return optionFunc(func(cfg *config) {
		if cfg.headers == nil {
			cfg.headers = metadata.MD{}
		}
		cfg.headers.Append(key, value)
	})
}

func WithUserAgent(ua string) Option {
	return optionFunc(func(cfg *config) { cfg.userAgent = strings.TrimSpace(ua) })
}

// WithDialOptions forwards raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return optionFunc(func(cfg *config) { cfg.extra = append(cfg.extra, opts...) })
}

// Resolve turns opts into gRPC dial options. Without explicit credentials
// connections use TLS against the system roots. Tracing interceptors are
// always chained.
func Resolve(opts ...Option) ([]grpc.DialOption, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.transport == nil {
		cfg.transport = credentials.NewTLS(defaultTLSConfig())
	}
	if cfg.callTimeout < 0 {
		return nil, errors.New("dial: call timeout must not be negative")
	}

	unary := []grpc.UnaryClientInterceptor{otelgrpc.UnaryClientInterceptor()}
	if cfg.callTimeout > 0 {
		unary = append(unary, timeoutInterceptor(cfg.callTimeout))
	}
	if len(cfg.headers) > 0 {
		unary = append(unary, headerInterceptor(cfg.headers))
	}

	out := []grpc.DialOption{
		grpc.WithTransportCredentials(cfg.transport),
		grpc.WithChainUnaryInterceptor(unary...),
		grpc.WithChainStreamInterceptor(otelgrpc.StreamClientInterceptor()),
	}
	if cfg.userAgent != "" {
		out = append(out, grpc.WithUserAgent(cfg.userAgent))
	}
	return append(out, cfg.extra...), nil
}

func timeoutInterceptor(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func headerInterceptor(md metadata.MD) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		for key, values := range md {
			for _, v := range values {
				ctx = metadata.AppendToOutgoingContext(ctx, key, v)
			}
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// TLSCredentialsFromFiles builds TLS credentials. A cert/key pair enables
// mutual TLS; a CA file alone pins the server roots.
func TLSCredentialsFromFiles(certPath, keyPath, caPath string) (credentials.TransportCredentials, error) {
	certPath = strings.TrimSpace(certPath)
	keyPath = strings.TrimSpace(keyPath)
	caPath = strings.TrimSpace(caPath)
	if (certPath == "") != (keyPath == "") {
		return nil, errors.New("dial: tls requires both certificate and key")
	}

	cfg := defaultTLSConfig()
	if certPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("dial: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("dial: read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("dial: ca certificate contains no pem blocks")
		}
		cfg.RootCAs = pool
	}
	return credentials.NewTLS(cfg), nil
}

func defaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
