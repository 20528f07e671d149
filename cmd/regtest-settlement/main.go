// Command regtest-settlement funds a regtest wallet, pays a second wallet and writes the
// resolved payment report.
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

	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/metrics"
	rpcclient2 "github.com/goodnatureofminers/blockinsight7000-txreport/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/report"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/service/settlement"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

type config struct {
	RPCURL        string  `long:"rpc-url" env:"SETTLEMENT_RPC_URL" description:"Bitcoin Core RPC URL" default:"http://127.0.0.1:18443"`
	RPCUser       string  `long:"rpc-user" env:"SETTLEMENT_RPC_USER" description:"Bitcoin RPC username" default:"alice"`
	RPCPassword   string  `long:"rpc-password" env:"SETTLEMENT_RPC_PASSWORD" description:"Bitcoin RPC password" default:"password"`
	RPCRateLimit  int     `long:"rpc-rate-limit" env:"SETTLEMENT_RPC_RATE_LIMIT" description:"max RPC calls per second, 0 disables limiting" default:"0"`
	MiningWallet  string  `long:"mining-wallet" env:"SETTLEMENT_MINING_WALLET" description:"wallet that mines and pays" default:"MiningFund"`
	TradingWallet string  `long:"trading-wallet" env:"SETTLEMENT_TRADING_WALLET" description:"wallet that receives the payment" default:"TradingAccount"`
	TargetBTC     float64 `long:"target-btc" env:"SETTLEMENT_TARGET_BTC" description:"spendable balance to reach before paying" default:"50"`
	PaymentBTC    float64 `long:"payment-btc" env:"SETTLEMENT_PAYMENT_BTC" description:"payment amount" default:"20"`
	MaxBlocks     int     `long:"max-blocks" env:"SETTLEMENT_MAX_BLOCKS" description:"upper bound on blocks mined while funding" default:"1000"`
	MatchPolicy   string  `long:"match-policy" env:"SETTLEMENT_MATCH_POLICY" description:"output matching policy" choice:"last-match-wins" choice:"exactly-one-match" default:"last-match-wins"`
	InputDepth    int     `long:"input-depth" env:"SETTLEMENT_INPUT_DEPTH" description:"inputs to resolve, -1 for all" default:"1"`
	Out           string  `long:"out" env:"SETTLEMENT_OUT" description:"report file, - for stdout" default:"out.txt"`
	ClickhouseDSN string  `long:"clickhouse-dsn" env:"SETTLEMENT_CLICKHOUSE_DSN" description:"ClickHouse DSN, empty skips storing the report"`
	MetricsAddr   string  `long:"metrics-addr" env:"SETTLEMENT_METRICS_ADDR" description:"address for metrics server, empty disables it"`
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
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("regtest settlement failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	coin, network := model.BTC, model.Regtest

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	params, err := bitcoin.ChainParams(network)
	if err != nil {
		return err
	}
	target, err := bitcoin.AmountFromBTC(cfg.TargetBTC)
	if err != nil {
		return fmt.Errorf("target amount: %w", err)
	}
	payment, err := bitcoin.AmountFromBTC(cfg.PaymentBTC)
	if err != nil {
		return fmt.Errorf("payment amount: %w", err)
	}
	policy, err := chain.ParseMatchPolicy(cfg.MatchPolicy)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if cfg.RPCRateLimit > 0 {
		limiter = ratelimit.New(cfg.RPCRateLimit)
	}
	rpcMetrics := metrics.NewRPCClient(coin, network)

	dial := func(wallet string) (*rpcclient2.ObservedClient, func(), error) {
		client, err := rpcclient2.Dial(rpcclient2.ConnConfig{
			URL:      cfg.RPCURL,
			User:     cfg.RPCUser,
			Password: cfg.RPCPassword,
			Wallet:   wallet,
			Params:   params,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init rpc client %q: %w", wallet, err)
		}
		closer := func() {
			client.Shutdown()
			client.WaitForShutdown()
		}
		return rpcclient2.NewObservedClient(client, rpcMetrics, limiter), closer, nil
	}

	node, closeNode, err := dial("")
	if err != nil {
		return err
	}
	defer closeNode()
	mining, closeMining, err := dial(cfg.MiningWallet)
	if err != nil {
		return err
	}
	defer closeMining()
	trading, closeTrading, err := dial(cfg.TradingWallet)
	if err != nil {
		return err
	}
	defer closeTrading()

	resolver, err := chain.NewTransactionResolver(
		bitcoin.NewChainPort(mining, bitcoin.NewScriptDecoder()),
		coin,
		network,
		chain.Options{MatchPolicy: policy, InputDepth: cfg.InputDepth},
		metrics.NewTransactionResolver(coin, network),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init transaction resolver: %w", err)
	}

	svc, err := settlement.NewService(
		node,
		mining,
		trading,
		resolver,
		metrics.NewSettlementScenario(coin, network),
		settlement.Config{
			MiningWallet:  cfg.MiningWallet,
			TradingWallet: cfg.TradingWallet,
			TargetBalance: target,
			PaymentAmount: payment,
			MaxBlocks:     cfg.MaxBlocks,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("init settlement service: %w", err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("payment resolved",
		zap.String("txid", res.Record.TxID),
		zap.Int("blocks_generated", res.BlocksGenerated),
		zap.String("mining_balance", res.MiningBalance.Format(btcutil.AmountBTC)),
		zap.Uint64("block_height", res.Record.ConfirmedHeight),
	)

	if err := writeReport(cfg.Out, res.Record, res.TradingAddress); err != nil {
		return err
	}

	if cfg.ClickhouseDSN == "" {
		return nil
	}
	repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close repository", zap.Error(err))
		}
	}()
	if err := repo.InsertTransactionReports(ctx, []model.TransactionRecord{res.Record}); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

func writeReport(out string, rec model.TransactionRecord, recipient string) error {
	if out == "-" {
		return report.Write(os.Stdout, rec, recipient)
	}
	return report.WriteFile(out, rec, recipient)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
