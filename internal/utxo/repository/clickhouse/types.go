package clickhouse

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, coin model.Coin, network model.Network, err error, started time.Time)
		ObserveRows(operation string, coin model.Coin, network model.Network, rows int)
	}

	// Conn is the part of a ClickHouse connection the repository writes through.
	Conn interface {
		PrepareBatch(ctx context.Context, query string) (Batch, error)
	}

	Batch interface {
		Append(v ...any) error
		Send() error
	}
)
