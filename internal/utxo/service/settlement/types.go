// Package settlement drives a funded payment between two regtest wallets and resolves it.
package settlement

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	NodeClient interface {
		ListWallets() ([]string, error)
		CreateWallet(name string) error
	}
	// WalletClient is bound to a single wallet endpoint.
	WalletClient interface {
		GetNewAddress(label string) (btcutil.Address, error)
		GetBalance() (btcutil.Amount, error)
		GenerateToAddress(numBlocks int64, address btcutil.Address) ([]*chainhash.Hash, error)
		SendToAddress(address btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error)
		GetMempoolEntry(txHash string) (*btcjson.GetMempoolEntryResult, error)
	}
	TransactionResolver interface {
		Resolve(ctx context.Context, txid, recipient string) (model.TransactionRecord, error)
	}
	Metrics interface {
		ObserveRun(err error, started time.Time)
		ObserveBlocksGenerated(blocks int)
	}
)
