package settlement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"go.uber.org/zap"
)

// ErrFundingLimit is returned when the mining wallet does not reach the target within MaxBlocks.
var ErrFundingLimit = errors.New("funding target not reached")

// Result describes a completed settlement run.
type Result struct {
	Record                model.TransactionRecord
	MiningAddress         string
	TradingAddress        string
	BlocksGenerated       int
	MiningBalance         btcutil.Amount
	ConfirmationBlockHash string
}

// Service funds a mining wallet on regtest, pays a trading wallet and resolves the payment.
type Service struct {
	node     NodeClient
	mining   WalletClient
	trading  WalletClient
	resolver TransactionResolver
	metrics  Metrics
	cfg      Config
	logger   *zap.Logger
}

func NewService(
	node NodeClient,
	mining WalletClient,
	trading WalletClient,
	resolver TransactionResolver,
	metrics Metrics,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if node == nil || mining == nil || trading == nil {
		return nil, errors.New("node and wallet clients are required")
	}
	if resolver == nil {
		return nil, errors.New("transaction resolver is required")
	}
	if metrics == nil {
		return nil, errors.New("settlement metrics is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Service{
		node:     node,
		mining:   mining,
		trading:  trading,
		resolver: resolver,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.Named("settlement"),
	}, nil
}

// Run executes the whole flow once.
func (s *Service) Run(ctx context.Context) (res Result, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveRun(err, started)
	}()

	if err = s.ensureWallets(ctx); err != nil {
		return Result{}, err
	}

	miningAddr, err := s.mining.GetNewAddress(s.cfg.MiningLabel)
	if err != nil {
		return Result{}, fmt.Errorf("get mining address: %w", err)
	}

	blocks, balance, err := s.fund(ctx, miningAddr)
	if err != nil {
		return Result{}, err
	}
	s.metrics.ObserveBlocksGenerated(blocks)
	s.logger.Info("mining wallet funded",
		zap.Int("blocks_generated", blocks),
		zap.Float64("balance_btc", balance.ToBTC()),
	)

	tradingAddr, err := s.trading.GetNewAddress(s.cfg.TradingLabel)
	if err != nil {
		return Result{}, fmt.Errorf("get trading address: %w", err)
	}
	s.logger.Info("addresses ready",
		zap.String("mining_address", miningAddr.EncodeAddress()),
		zap.String("trading_address", tradingAddr.EncodeAddress()),
	)

	if err = ctx.Err(); err != nil {
		return Result{}, err
	}
	txHash, err := s.mining.SendToAddress(tradingAddr, s.cfg.PaymentAmount)
	if err != nil {
		return Result{}, fmt.Errorf("send payment: %w", err)
	}
	txid := txHash.String()
	s.logger.Info("payment broadcast", zap.String("txid", txid), zap.Float64("amount_btc", s.cfg.PaymentAmount.ToBTC()))

	entry, err := s.mining.GetMempoolEntry(txid)
	if err != nil {
		return Result{}, fmt.Errorf("get mempool entry %s: %w", txid, err)
	}
	s.logger.Info("payment in mempool",
		zap.String("txid", txid),
		zap.Int32("vsize", entry.VSize),
		zap.Float64("fee_btc", entry.Fee),
		zap.Int64("height", entry.Height),
	)

	confirmation, err := s.mining.GenerateToAddress(1, miningAddr)
	if err != nil {
		return Result{}, fmt.Errorf("mine confirmation block: %w", err)
	}
	if len(confirmation) == 0 || confirmation[0] == nil {
		return Result{}, errors.New("mine confirmation block: node returned no block hash")
	}
	confirmationHash := confirmation[0].String()

	record, err := s.resolver.Resolve(ctx, txid, tradingAddr.EncodeAddress())
	if err != nil {
		return Result{}, fmt.Errorf("resolve payment %s: %w", txid, err)
	}
	if record.ConfirmedBlockHash != confirmationHash {
		s.logger.Warn("payment confirmed in an unexpected block",
			zap.String("txid", txid),
			zap.String("expected_block", confirmationHash),
			zap.String("block", record.ConfirmedBlockHash),
		)
	}

	return Result{
		Record:                record,
		MiningAddress:         miningAddr.EncodeAddress(),
		TradingAddress:        tradingAddr.EncodeAddress(),
		BlocksGenerated:       blocks,
		MiningBalance:         balance,
		ConfirmationBlockHash: confirmationHash,
	}, nil
}

func (s *Service) ensureWallets(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.node.ListWallets()
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}
	for _, name := range []string{s.cfg.MiningWallet, s.cfg.TradingWallet} {
		if slices.Contains(existing, name) {
			continue
		}
		if err := s.node.CreateWallet(name); err != nil {
			return fmt.Errorf("create wallet %s: %w", name, err)
		}
		s.logger.Info("wallet created", zap.String("wallet", name))
	}
	return nil
}

// fund mines one block at a time until the mining balance reaches the target.
func (s *Service) fund(ctx context.Context, addr btcutil.Address) (int, btcutil.Amount, error) {
	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return blocks, 0, err
		}

		balance, err := s.mining.GetBalance()
		if err != nil {
			return blocks, 0, fmt.Errorf("get mining balance: %w", err)
		}
		if balance >= s.cfg.TargetBalance {
			return blocks, balance, nil
		}
		if blocks >= s.cfg.MaxBlocks {
			return blocks, balance, fmt.Errorf("%w: balance %v after %d blocks, want %v",
				ErrFundingLimit, balance, blocks, s.cfg.TargetBalance)
		}

		if _, err := s.mining.GenerateToAddress(1, addr); err != nil {
			return blocks, 0, fmt.Errorf("mine funding block: %w", err)
		}
		blocks++
		if blocks%25 == 0 {
			s.logger.Debug("still funding", zap.Int("blocks_generated", blocks), zap.Float64("balance_btc", balance.ToBTC()))
		}
	}
}
