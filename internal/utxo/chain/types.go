// Package chain defines the chain data port and reconstructs transaction summaries from it.
package chain

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// ChainDataPort provides read access to chain data needed to summarize a transaction.
	ChainDataPort interface {
		FetchTransaction(ctx context.Context, txid string) (*model.TransactionMetadata, error)
		DecodeTransaction(ctx context.Context, rawHex string) (*model.DecodedTransaction, error)
		// ResolveAddress returns an empty string when the script has no single network address.
		ResolveAddress(ctx context.Context, script model.ScriptPubKey, network model.Network) (string, error)
	}

	// RawTransactionFetcher is an optional ChainDataPort extension. When the port implements it,
	// previous transactions are read with it since their confirmation is not needed.
	RawTransactionFetcher interface {
		FetchRawTransaction(ctx context.Context, txid string) (string, error)
	}

	// ResolverMetrics records resolution outcomes.
	ResolverMetrics interface {
		ObserveResolve(err error, started time.Time)
		ObserveInputDegraded(reason string)
	}
)
