// Command txreport resolves wallet transactions already on chain and prints their reports.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/metrics"
	rpcclient2 "github.com/goodnatureofminers/blockinsight7000-txreport/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/report"
	"github.com/goodnatureofminers/blockinsight7000-txreport/pkg/workerpool"
	"github.com/jessevdk/go-flags"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

type config struct {
	RPCURL       string        `long:"rpc-url" env:"TXREPORT_RPC_URL" description:"Bitcoin Core RPC URL" default:"http://127.0.0.1:18443"`
	RPCUser      string        `long:"rpc-user" env:"TXREPORT_RPC_USER" description:"Bitcoin RPC username" required:"true"`
	RPCPassword  string        `long:"rpc-password" env:"TXREPORT_RPC_PASSWORD" description:"Bitcoin RPC password" required:"true"`
	RPCRateLimit int           `long:"rpc-rate-limit" env:"TXREPORT_RPC_RATE_LIMIT" description:"max RPC calls per second, 0 disables limiting" default:"0"`
	Wallet       string        `long:"wallet" env:"TXREPORT_WALLET" description:"wallet that knows the transactions" required:"true"`
	Network      string        `long:"network" env:"TXREPORT_NETWORK" description:"network name" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet" required:"true"`
	TxIDs        []string      `long:"txid" description:"transaction id to report, repeatable" required:"true"`
	Recipient    string        `long:"recipient" env:"TXREPORT_RECIPIENT" description:"address treated as the payment recipient" required:"true"`
	MatchPolicy  string        `long:"match-policy" env:"TXREPORT_MATCH_POLICY" description:"output matching policy" choice:"last-match-wins" choice:"exactly-one-match" default:"last-match-wins"`
	InputDepth   int           `long:"input-depth" env:"TXREPORT_INPUT_DEPTH" description:"inputs to resolve, -1 for all" default:"1"`
	WaitInterval time.Duration `long:"wait-interval" env:"TXREPORT_WAIT_INTERVAL" description:"poll interval for unconfirmed transactions, 0 fails immediately" default:"0s"`
	WaitAttempts int           `long:"wait-attempts" env:"TXREPORT_WAIT_ATTEMPTS" description:"polls before giving up on an unconfirmed transaction" default:"60"`
	Workers      int           `long:"workers" env:"TXREPORT_WORKERS" description:"transactions resolved concurrently" default:"4"`
	Out          string        `long:"out" env:"TXREPORT_OUT" description:"report file, - for stdout" default:"-"`
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
		logger.Fatal("txreport failed", zap.Error(err))
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

	records, err := workerpool.Map(ctx, cfg.Workers, cfg.TxIDs, func(ctx context.Context, txid string) (model.TransactionRecord, error) {
		rec, err := resolveWhenConfirmed(ctx, resolver, txid, cfg.Recipient, cfg.WaitInterval, cfg.WaitAttempts, logger)
		if err != nil {
			return model.TransactionRecord{}, fmt.Errorf("resolve %s: %w", txid, err)
		}
		logger.Debug("transaction resolved", zap.String("txid", txid), zap.Uint64("block_height", rec.ConfirmedHeight))
		return rec, nil
	})
	if err != nil {
		return err
	}

	if cfg.Out == "-" {
		return writeReports(os.Stdout, records, cfg.Recipient)
	}
	f, err := os.Create(cfg.Out)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := writeReports(f, records, cfg.Recipient); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// resolveWhenConfirmed polls while the transaction is unconfirmed. A zero interval resolves once.
func resolveWhenConfirmed(
	ctx context.Context,
	resolver *chain.TransactionResolver,
	txid, recipient string,
	interval time.Duration,
	attempts int,
	logger *zap.Logger,
) (model.TransactionRecord, error) {
	if interval <= 0 {
		return resolver.Resolve(ctx, txid, recipient)
	}

	var rec model.TransactionRecord
	err := clock.Poll(ctx, interval, attempts, isNotConfirmed, func(ctx context.Context) error {
		var err error
		rec, err = resolver.Resolve(ctx, txid, recipient)
		if isNotConfirmed(err) {
			logger.Info("waiting for confirmation", zap.String("txid", txid), zap.Duration("interval", interval))
		}
		return err
	})
	return rec, err
}

func isNotConfirmed(err error) bool {
	return errors.Is(err, chain.ErrNotConfirmed)
}

// writeReports separates consecutive reports with a blank line.
func writeReports(w io.Writer, records []model.TransactionRecord, recipient string) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		if err := report.Write(bw, rec, recipient); err != nil {
			return err
		}
	}
	return bw.Flush()
}
