package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/pkg/safe"
)

const insertTransactionReportsQuery = `
INSERT INTO utxo_transaction_reports (
	coin,
	network,
	txid,
	block_height,
	block_hash,
	fee,
	input_addresses,
	input_values,
	recipient_address,
	recipient_value,
	change_address,
	change_value,
	reported_at
) VALUES`

// InsertTransactionReports stores resolved transaction records in ClickHouse.
func (r *Repository) InsertTransactionReports(ctx context.Context, records []model.TransactionRecord) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_transaction_reports", firstCoin(records), firstNetwork(records), err, start)
	}()

	if len(records) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertTransactionReportsQuery)
	if err != nil {
		return fmt.Errorf("prepare transaction reports batch: %w", err)
	}

	reportedAt := r.now().UTC().Truncate(time.Second)
	for _, rec := range records {
		var row []any
		row, err = reportRow(rec, reportedAt)
		if err != nil {
			return fmt.Errorf("convert transaction report %s: %w", rec.TxID, err)
		}
		if err = batch.Append(row...); err != nil {
			return fmt.Errorf("append transaction report: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert transaction reports: %w", err)
	}
	r.metrics.ObserveRows("insert_transaction_reports", firstCoin(records), firstNetwork(records), len(records))
	return nil
}

func reportRow(rec model.TransactionRecord, reportedAt time.Time) ([]any, error) {
	fee, err := sats(rec.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	inputAddresses := make([]string, 0, len(rec.Inputs))
	inputValues := make([]uint64, 0, len(rec.Inputs))
	for idx, in := range rec.Inputs {
		value, err := sats(in.Amount)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", idx, err)
		}
		inputAddresses = append(inputAddresses, in.Address)
		inputValues = append(inputValues, value)
	}

	recipientValue, err := sats(rec.Outputs.Primary.Amount)
	if err != nil {
		return nil, fmt.Errorf("recipient value: %w", err)
	}
	change := rec.Outputs.ChangeOrZero()
	changeValue, err := sats(change.Amount)
	if err != nil {
		return nil, fmt.Errorf("change value: %w", err)
	}

	return []any{
		string(rec.Coin),
		string(rec.Network),
		rec.TxID,
		rec.ConfirmedHeight,
		rec.ConfirmedBlockHash,
		fee,
		inputAddresses,
		inputValues,
		rec.Outputs.Primary.Address,
		recipientValue,
		change.Address,
		changeValue,
		reportedAt,
	}, nil
}

func sats(amt btcutil.Amount) (uint64, error) {
	return safe.Uint64(amt)
}

func firstCoin(records []model.TransactionRecord) model.Coin {
	if len(records) == 0 {
		return ""
	}
	return records[0].Coin
}

func firstNetwork(records []model.TransactionRecord) model.Network {
	if len(records) == 0 {
		return ""
	}
	return records[0].Network
}
