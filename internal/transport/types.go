package transport

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	TransactionResolver interface {
		Resolve(ctx context.Context, txid, recipient string) (model.TransactionRecord, error)
	}
	// ReportSink receives every successfully resolved record.
	ReportSink interface {
		Add(ctx context.Context, rec model.TransactionRecord) error
	}
	Metrics interface {
		ObserveRequest(format string, code int, started time.Time)
	}
)
