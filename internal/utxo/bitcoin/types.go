package bitcoin

import (
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// RPCClient is the wallet-scoped subset of the node RPC used by ChainPort.
	RPCClient interface {
		GetTransaction(txHash *chainhash.Hash) (*btcjson.GetTransactionResult, error)
		GetBlockHeaderVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
		DecodeRawTransaction(serializedTx []byte) (*btcjson.TxRawResult, error)
	}

	// ScriptDecoder turns an output script into a single network address.
	ScriptDecoder interface {
		DecodeAddress(script model.ScriptPubKey, network model.Network) (string, error)
	}
)
