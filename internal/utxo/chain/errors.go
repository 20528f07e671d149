package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfirmed is returned when the transaction lacks a confirmation height or block hash.
	ErrNotConfirmed = errors.New("transaction not confirmed")
	// ErrAmbiguousOutputs is returned by ExactlyOneMatchRequired when outputs cannot be told apart.
	ErrAmbiguousOutputs = errors.New("ambiguous transaction outputs")
)

// ChainAccessError wraps a failure to read or decode data through the chain data port.
type ChainAccessError struct {
	Op   string
	TxID string
	Err  error
}

func (e *ChainAccessError) Error() string {
	return fmt.Sprintf("chain access %s for tx %s: %v", e.Op, e.TxID, e.Err)
}

func (e *ChainAccessError) Unwrap() error {
	return e.Err
}

func chainAccess(op, txid string, err error) error {
	return &ChainAccessError{Op: op, TxID: txid, Err: err}
}
