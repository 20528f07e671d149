package model

import "github.com/btcsuite/btcd/btcutil"

// TransactionMetadata is the node's view of a transaction: fee, confirmation and raw bytes.
type TransactionMetadata struct {
	TxID string
	// Fee is reported as-is by the data source; wallets report sends with a negative sign.
	Fee btcutil.Amount
	// ConfirmedHeight is nil while the transaction is unconfirmed.
	ConfirmedHeight *uint64
	// ConfirmedBlockHash is empty while the transaction is unconfirmed.
	ConfirmedBlockHash string
	RawHex             string
}

// Confirmed reports whether both confirmation height and block hash are known.
func (m TransactionMetadata) Confirmed() bool {
	return m.ConfirmedHeight != nil && m.ConfirmedBlockHash != ""
}

// DecodedTransaction is a structured view of raw transaction bytes.
type DecodedTransaction struct {
	TxID    string
	Inputs  []DecodedInput
	Outputs []DecodedOutput
}

// DecodedInput references the previous output it spends.
type DecodedInput struct {
	// PrevTxID is empty for coinbase inputs.
	PrevTxID string
	// PrevVout is nil when the input carries no previous output reference.
	PrevVout *uint32
}

// HasPrevOut reports whether the input references a previous output.
func (in DecodedInput) HasPrevOut() bool {
	return in.PrevTxID != "" && in.PrevVout != nil
}

// DecodedOutput is a single transaction output.
type DecodedOutput struct {
	ScriptPubKey ScriptPubKey
	Amount       btcutil.Amount
}

// ScriptPubKey is treated as opaque; Address is whatever the data source already decoded.
type ScriptPubKey struct {
	Hex     string
	Type    string
	Address string
}
