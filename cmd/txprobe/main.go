// Command txprobe drives the ledger transaction lifecycle end to end: it
// creates a threshold account, exercises signing, duplicate detection and
// paid queries, then reports what the ledger answered.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"ledgerclient/config"
	"ledgerclient/journal"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/lifecycle"
	"ledgerclient/observability"
	"ledgerclient/observability/logging"
	telemetry "ledgerclient/observability/otel"
	ledgersdk "ledgerclient/sdk/ledger"
	"ledgerclient/submit"
)

func main() {
	var (
		cfgPath string
		batch   int
		serve   bool
		timeout time.Duration
	)
	flag.StringVar(&cfgPath, "config", "txprobe.toml", "path to probe configuration (.toml or .yaml)")
	flag.IntVar(&batch, "batch", 10, "number of concurrent transfers in the final step")
	flag.BoolVar(&serve, "serve", false, "keep serving /metrics and /journal after the run until interrupted")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "bound on the whole probe run")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, logCloser := logging.Setup(logging.Options{
		Service:    "txprobe",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, batch, serve, timeout); err != nil {
		logger.Error("probe failed", slog.Any("error", err))
		stop()
		_ = logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, batch int, serve bool, timeout time.Duration) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "txprobe",
		Environment: cfg.Logging.Env,
		Attributes:  map[string]string{"ledger.local_nodes": strconv.Itoa(cfg.Network.LocalNodes)},
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewLifecycleMetrics(registry)

	store, err := openStore(cfg.Keys)
	if err != nil {
		return err
	}
	defer store.Close()

	var jr *journal.Journal
	if cfg.Journal.DSN != "" {
		jr, err = journal.Open(cfg.Journal.DSN)
		if err != nil {
			return err
		}
		defer jr.Close()
		logger.Info("journal open", logging.Secret("dsn", cfg.Journal.DSN))
	}

	authSecret, err := cfg.AuthSecret()
	if err != nil {
		return err
	}

	nodes, payer, cleanup, err := resolveNetwork(cfg, store, logger, authSecret)
	if err != nil {
		return err
	}
	defer cleanup()

	dialOpts, err := dialOptions(cfg, authSecret, payer)
	if err != nil {
		return err
	}
	pool := ledgersdk.NewPool(dialOpts...)
	defer pool.Close()

	client, err := lifecycle.New(submit.New(pool, submit.WithLogger(logger)), store, nodes, clientOptions(cfg, logger, metrics, jr)...)
	if err != nil {
		return err
	}
	defer client.Close()

	var server *http.Server
	if cfg.HTTP.Listen != "" {
		server = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           otelhttp.NewHandler(newRouter(registry, jr), "txprobe"),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http listener stopped", slog.Any("error", err))
			}
		}()
		logger.Info("http listening", slog.String("addr", cfg.HTTP.Listen))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	policy, _ := cfg.Policy()
	p := &probe{client: client, store: store, payer: payer, logger: logger, policy: policy.MaxAttempts, batch: batch}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	report, err := p.Run(runCtx)
	cancel()
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return err
	}

	if serve && server != nil {
		logger.Info("serving until interrupted")
		<-ctx.Done()
	}
	return nil
}

func openStore(cfg config.Keys) (*keys.Store, error) {
	if cfg.Path == "" {
		return keys.NewStore(), nil
	}
	var (
		backend keys.Backend
		err     error
	)
	switch cfg.Backend {
	case "bolt":
		backend, err = keys.NewBoltBackend(cfg.Path)
	default:
		backend, err = keys.NewLevelDBBackend(cfg.Path)
	}
	if err != nil {
		return nil, err
	}
	store, err := keys.OpenStore(backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

func resolveNetwork(cfg config.Config, store *keys.Store, logger *slog.Logger, authSecret []byte) ([]ledger.Node, ledger.AccountID, func(), error) {
	if cfg.Network.LocalNodes > 0 {
		var serverOpts []grpc.ServerOption
		if len(authSecret) > 0 {
			serverOpts = append(serverOpts, grpc.UnaryInterceptor(ledgersdk.TokenAuthInterceptor(authSecret, cfg.Network.AuthIssuer)))
		}
		local, err := startLocal(cfg.Network.LocalNodes, cfg.PayerKeyType(), store, logger, serverOpts...)
		if err != nil {
			return nil, ledger.AccountID{}, nil, err
		}
		return local.nodes, local.payer, local.Stop, nil
	}
	nodes, err := cfg.NodeList()
	if err != nil {
		return nil, ledger.AccountID{}, nil, err
	}
	payer, err := loadPayer(cfg, store, logger)
	if err != nil {
		return nil, ledger.AccountID{}, nil, err
	}
	return nodes, payer, func() {}, nil
}

// dialOptions builds the pool's transport options. A non-empty authSecret
// attaches bearer tokens issued to payer.
func dialOptions(cfg config.Config, authSecret []byte, payer ledger.AccountID) ([]ledgersdk.DialOption, error) {
	timeout, err := cfg.CallTimeout()
	if err != nil {
		return nil, err
	}
	opts := []ledgersdk.DialOption{
		ledgersdk.WithCallTimeout(timeout),
		ledgersdk.WithUserAgent(cfg.Network.UserAgent),
	}
	insecure := cfg.Network.Insecure || cfg.Network.LocalNodes > 0
	switch {
	case insecure:
		opts = append(opts, ledgersdk.WithInsecure())
	case strings.TrimSpace(cfg.Network.CAFile) != "" || cfg.Network.CertFile != "":
		tlsOpt, err := ledgersdk.WithTLSFromFiles(cfg.Network.CertFile, cfg.Network.KeyFile, cfg.Network.CAFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tlsOpt)
	}
	if len(authSecret) > 0 {
		creds, err := ledgersdk.NewTokenCredentials(authSecret, cfg.Network.AuthIssuer, payer.String(), time.Minute, insecure)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledgersdk.WithPerRPCCredentials(creds))
	}
	return opts, nil
}

func clientOptions(cfg config.Config, logger *slog.Logger, metrics *observability.LifecycleMetrics, jr *journal.Journal) []lifecycle.Option {
	policy, _ := cfg.Policy()
	statuses, _ := cfg.RetryStatuses()
	opts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(metrics),
		lifecycle.WithPolicy(policy),
		lifecycle.WithTransactionFee(cfg.Fees.TransactionFee),
		lifecycle.WithQueryPayment(cfg.Fees.QueryPayment),
		lifecycle.WithAutoFee(cfg.Fees.AutoFee),
		lifecycle.WithRetryPrechecks(statuses...),
		lifecycle.WithMaxPrecheckRetries(cfg.Submit.MaxRetries),
	}
	if cfg.Submit.Fanout > 0 {
		opts = append(opts, lifecycle.WithFanout(cfg.Submit.Fanout))
	}
	if cfg.Submit.RatePerSecond > 0 {
		burst := cfg.Submit.Burst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, lifecycle.WithRateLimit(rate.Limit(cfg.Submit.RatePerSecond), burst))
	}
	if jr != nil {
		opts = append(opts, lifecycle.WithJournal(jr))
	}
	return opts
}
