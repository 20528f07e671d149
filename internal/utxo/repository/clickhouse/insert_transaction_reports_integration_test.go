//go:build integration

package clickhouse

import (
	"strings"

	"github.com/golang/mock/gomock"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

func (s *RepositorySuite) TestInsertTransactionReports() {
	records := []model.TransactionRecord{
		{
			Coin:               model.BTC,
			Network:            model.Regtest,
			TxID:               strings.Repeat("a", 64),
			Fee:                10_000,
			ConfirmedHeight:    102,
			ConfirmedBlockHash: strings.Repeat("b", 64),
			Inputs:             []model.Endpoint{{Address: "bcrt1qminer", Amount: 5_000_000_000}},
			Outputs: model.Outputs{
				Primary: model.Endpoint{Address: "bcrt1qtrader", Amount: 2_000_000_000},
				Change:  &model.Endpoint{Address: "bcrt1qchange", Amount: 2_999_990_000},
			},
		},
		{
			Coin:               model.BTC,
			Network:            model.Regtest,
			TxID:               strings.Repeat("c", 64),
			Fee:                200,
			ConfirmedHeight:    103,
			ConfirmedBlockHash: strings.Repeat("d", 64),
		},
	}

	s.metrics.EXPECT().ObserveRows("insert_transaction_reports", model.BTC, model.Regtest, len(records)).Times(1)
	s.metrics.EXPECT().Observe("insert_transaction_reports", model.BTC, model.Regtest, gomock.Nil(), gomock.Any()).Times(1)

	s.Require().NoError(s.repo.InsertTransactionReports(s.testCtx, records))
	s.Equal(uint64(len(records)), s.countRows("utxo_transaction_reports"))

	row := s.repo.db.QueryRow(s.testCtx, `
SELECT recipient_address, recipient_value, change_value, input_values
FROM utxo_transaction_reports
WHERE txid = ?`, records[0].TxID)

	var (
		recipient      string
		recipientValue uint64
		changeValue    uint64
		inputValues    []uint64
	)
	s.Require().NoError(row.Scan(&recipient, &recipientValue, &changeValue, &inputValues))
	s.Equal("bcrt1qtrader", recipient)
	s.Equal(uint64(2_000_000_000), recipientValue)
	s.Equal(uint64(2_999_990_000), changeValue)
	s.Equal([]uint64{5_000_000_000}, inputValues)
}

func (s *RepositorySuite) TestPing() {
	s.Require().NoError(s.repo.Ping(s.testCtx))
}
