package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

// convertTransaction maps a decoderawtransaction result onto the domain view.
func convertTransaction(tx btcjson.TxRawResult) (*model.DecodedTransaction, error) {
	inputs := make([]model.DecodedInput, 0, len(tx.Vin))
	for _, vin := range tx.Vin {
		if vin.IsCoinBase() {
			inputs = append(inputs, model.DecodedInput{})
			continue
		}
		prevVout := vin.Vout
		inputs = append(inputs, model.DecodedInput{
			PrevTxID: vin.Txid,
			PrevVout: &prevVout,
		})
	}

	outputs := make([]model.DecodedOutput, 0, len(tx.Vout))
	for idx, vout := range tx.Vout {
		if vout.Value < 0 {
			return nil, fmt.Errorf("tx %s output %d negative value: %f", tx.Txid, idx, vout.Value)
		}
		amount, err := AmountFromBTC(vout.Value)
		if err != nil {
			return nil, fmt.Errorf("tx %s output %d amount: %w", tx.Txid, idx, err)
		}

		outputs = append(outputs, model.DecodedOutput{
			ScriptPubKey: model.ScriptPubKey{
				Hex:     vout.ScriptPubKey.Hex,
				Type:    vout.ScriptPubKey.Type,
				Address: nodeAddress(vout.ScriptPubKey),
			},
			Amount: amount,
		})
	}

	return &model.DecodedTransaction{
		TxID:    tx.Txid,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

// nodeAddress returns the single address reported by the node, if any. Older nodes only
// fill the addresses list.
func nodeAddress(script btcjson.ScriptPubKeyResult) string {
	if script.Address != "" {
		return script.Address
	}
	if len(script.Addresses) == 1 {
		return script.Addresses[0]
	}
	return ""
}
