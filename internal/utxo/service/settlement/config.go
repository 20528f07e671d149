package settlement

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	DefaultMiningWallet  = "MiningFund"
	DefaultTradingWallet = "TradingAccount"

	defaultMiningLabel  = "Initial Mining Payout"
	defaultTradingLabel = "Incoming Funds"

	defaultTargetBalance = 50 * btcutil.SatoshiPerBitcoin
	defaultPaymentAmount = 20 * btcutil.SatoshiPerBitcoin
	defaultMaxBlocks     = 1000
)

// Config controls a settlement run. Zero fields take the defaults of the classic regtest demo.
type Config struct {
	MiningWallet  string
	TradingWallet string
	MiningLabel   string
	TradingLabel  string
	// TargetBalance is the spendable mining balance required before paying.
	TargetBalance btcutil.Amount
	PaymentAmount btcutil.Amount
	// MaxBlocks bounds the number of blocks mined while funding.
	MaxBlocks int
}

func (c Config) withDefaults() Config {
	if c.MiningWallet == "" {
		c.MiningWallet = DefaultMiningWallet
	}
	if c.TradingWallet == "" {
		c.TradingWallet = DefaultTradingWallet
	}
	if c.MiningLabel == "" {
		c.MiningLabel = defaultMiningLabel
	}
	if c.TradingLabel == "" {
		c.TradingLabel = defaultTradingLabel
	}
	if c.TargetBalance == 0 {
		c.TargetBalance = defaultTargetBalance
	}
	if c.PaymentAmount == 0 {
		c.PaymentAmount = defaultPaymentAmount
	}
	if c.MaxBlocks == 0 {
		c.MaxBlocks = defaultMaxBlocks
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.MiningWallet == c.TradingWallet:
		return errors.New("mining and trading wallets must differ")
	case c.TargetBalance < 0 || c.PaymentAmount < 0:
		return errors.New("amounts must not be negative")
	case c.PaymentAmount >= c.TargetBalance:
		return errors.New("payment amount must be below the funding target to leave room for the fee")
	case c.MaxBlocks < 0:
		return errors.New("max blocks must not be negative")
	}
	return nil
}
