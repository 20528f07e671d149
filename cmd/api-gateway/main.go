// Command api-gateway serves transaction reports over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/metrics"
	rpcclient2 "github.com/goodnatureofminers/blockinsight7000-txreport/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/transport"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/service/reportsink"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

type config struct {
	RestAddr           string        `long:"rest-addr" env:"API_GATEWAY_REST_ADDR" description:"rest addr" default:":8001"`
	RPCURL             string        `long:"rpc-url" env:"API_GATEWAY_RPC_URL" description:"Bitcoin Core RPC URL" required:"true"`
	RPCUser            string        `long:"rpc-user" env:"API_GATEWAY_RPC_USER" description:"Bitcoin RPC username" required:"true"`
	RPCPassword        string        `long:"rpc-password" env:"API_GATEWAY_RPC_PASSWORD" description:"Bitcoin RPC password" required:"true"`
	RPCRateLimit       int           `long:"rpc-rate-limit" env:"API_GATEWAY_RPC_RATE_LIMIT" description:"max RPC calls per second, 0 disables limiting" default:"100"`
	Wallet             string        `long:"wallet" env:"API_GATEWAY_WALLET" description:"wallet that knows the reported transactions" required:"true"`
	Network            string        `long:"network" env:"API_GATEWAY_NETWORK" description:"network name" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet" required:"true"`
	MatchPolicy        string        `long:"match-policy" env:"API_GATEWAY_MATCH_POLICY" description:"output matching policy" choice:"last-match-wins" choice:"exactly-one-match" default:"last-match-wins"`
	InputDepth         int           `long:"input-depth" env:"API_GATEWAY_INPUT_DEPTH" description:"inputs to resolve, -1 for all" default:"1"`
	ClickhouseDSN      string        `long:"clickhouse-dsn" env:"API_GATEWAY_CLICKHOUSE_DSN" description:"ClickHouse DSN, empty disables storing reports"`
	SinkFlushSize      int           `long:"sink-flush-size" env:"API_GATEWAY_SINK_FLUSH_SIZE" description:"reports per ClickHouse batch" default:"500"`
	SinkFlushInterval  time.Duration `long:"sink-flush-interval" env:"API_GATEWAY_SINK_FLUSH_INTERVAL" description:"max delay before a partial batch is written" default:"5s"`
	SinkFlushRateLimit int           `long:"sink-flush-rate-limit" env:"API_GATEWAY_SINK_FLUSH_RATE_LIMIT" description:"max batch writes per second" default:"10"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("Failed to parse arguments", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api gateway failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	coin := model.BTC
	network := model.Network(cfg.Network)

	params, err := bitcoin.ChainParams(network)
	if err != nil {
		return err
	}
	policy, err := chain.ParseMatchPolicy(cfg.MatchPolicy)
	if err != nil {
		return err
	}

	client, err := rpcclient2.Dial(rpcclient2.ConnConfig{
		URL:      cfg.RPCURL,
		User:     cfg.RPCUser,
		Password: cfg.RPCPassword,
		Wallet:   cfg.Wallet,
		Params:   params,
	})
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		client.Shutdown()
		client.WaitForShutdown()
	}()

	var limiter ratelimit.Limiter
	if cfg.RPCRateLimit > 0 {
		limiter = ratelimit.New(cfg.RPCRateLimit)
	}
	observed := rpcclient2.NewObservedClient(client, metrics.NewRPCClient(coin, network), limiter)

	resolver, err := chain.NewTransactionResolver(
		bitcoin.NewChainPort(observed, bitcoin.NewScriptDecoder()),
		coin,
		network,
		chain.Options{MatchPolicy: policy, InputDepth: cfg.InputDepth},
		metrics.NewTransactionResolver(coin, network),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init transaction resolver: %w", err)
	}

	var sink transport.ReportSink
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Warn("close repository", zap.Error(err))
			}
		}()
		if err := repo.Ping(ctx); err != nil {
			return fmt.Errorf("ping clickhouse: %w", err)
		}

		s := reportsink.New(repo, reportsink.Options{
			FlushSize:     cfg.SinkFlushSize,
			FlushInterval: cfg.SinkFlushInterval,
			FlushRate:     cfg.SinkFlushRateLimit,
		}, logger)
		s.Start(ctx)
		defer s.Stop()
		sink = s
	}

	mux := http.NewServeMux()
	transport.NewReportHandler(resolver, sink, metrics.NewReportAPI(), logger).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              cfg.RestAddr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", cfg.RestAddr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}
