// Package report renders transaction records in the line-oriented settlement format.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

// FormatAmount renders amt in whole coins with the shortest exact decimal, e.g. 20, 29.9999, 0.0001.
func FormatAmount(amt btcutil.Amount) string {
	return strconv.FormatFloat(amt.ToBTC(), 'f', -1, 64)
}

// Lines returns the ten report fields in order. The recipient line carries the address the
// caller asked about, even when no output paid it.
func Lines(rec model.TransactionRecord, recipient string) []string {
	input := rec.FirstInput()
	change := rec.Outputs.ChangeOrZero()

	return []string{
		rec.TxID,
		input.Address,
		FormatAmount(input.Amount),
		recipient,
		FormatAmount(rec.Outputs.Primary.Amount),
		change.Address,
		FormatAmount(change.Amount),
		FormatAmount(rec.Fee),
		strconv.FormatUint(rec.ConfirmedHeight, 10),
		rec.ConfirmedBlockHash,
	}
}

// Write emits the report to w, one newline-terminated field per line.
func Write(w io.Writer, rec model.TransactionRecord, recipient string) error {
	bw := bufio.NewWriter(w)
	for _, line := range Lines(rec, recipient) {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write report line: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteFile creates or truncates path and writes the report into it.
func WriteFile(path string, rec model.TransactionRecord, recipient string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file %s: %w", path, cerr)
		}
	}()

	return Write(f, rec, recipient)
}
