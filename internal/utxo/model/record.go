package model

import "github.com/btcsuite/btcd/btcutil"

// Endpoint is one side of a transfer. An empty Address means the destination could not be
// decoded into a network address.
type Endpoint struct {
	Address string
	Amount  btcutil.Amount
}

// Outputs splits transaction outputs into the deliberate payment and the change.
type Outputs struct {
	Primary Endpoint
	// Change is nil when no output qualifies as change.
	Change *Endpoint
}

// ChangeOrZero returns the change endpoint or the zero endpoint when absent.
func (o Outputs) ChangeOrZero() Endpoint {
	if o.Change == nil {
		return Endpoint{}
	}
	return *o.Change
}

// TransactionRecord is the economic summary of a confirmed transaction.
type TransactionRecord struct {
	Coin               Coin
	Network            Network
	TxID               string
	Fee                btcutil.Amount
	ConfirmedHeight    uint64
	ConfirmedBlockHash string
	Inputs             []Endpoint
	Outputs            Outputs
}

// FirstInput returns the first resolved input or the zero endpoint.
func (r TransactionRecord) FirstInput() Endpoint {
	if len(r.Inputs) == 0 {
		return Endpoint{}
	}
	return r.Inputs[0]
}
