// Package bitcoin implements the chain data port on top of a Bitcoin Core node.
package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// AmountFromBTC converts a node-reported BTC value to an Amount, rejecting negatives.
func AmountFromBTC(value float64) (btcutil.Amount, error) {
	amt, err := SignedAmountFromBTC(value)
	if err != nil {
		return 0, err
	}
	if amt < 0 {
		return 0, fmt.Errorf("negative amount: %d", amt)
	}
	return amt, nil
}

// SignedAmountFromBTC converts a BTC value that may carry a sign, such as a wallet fee.
func SignedAmountFromBTC(value float64) (btcutil.Amount, error) {
	return btcutil.NewAmount(value)
}
