package bitcoin

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/pkg/safe"
)

// ChainPort implements chain.ChainDataPort against a wallet-scoped Bitcoin Core RPC endpoint.
type ChainPort struct {
	rpc     RPCClient
	decoder ScriptDecoder
}

// NewChainPort creates a ChainPort.
func NewChainPort(rpc RPCClient, decoder ScriptDecoder) *ChainPort {
	return &ChainPort{
		rpc:     rpc,
		decoder: decoder,
	}
}

// FetchTransaction reads fee, confirmation and raw bytes through gettransaction. The
// confirmation height comes from the header of the confirming block.
func (p *ChainPort) FetchTransaction(ctx context.Context, txid string) (*model.TransactionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.getTransaction(txid)
	if err != nil {
		return nil, err
	}

	fee, err := SignedAmountFromBTC(res.Fee)
	if err != nil {
		return nil, fmt.Errorf("tx %s fee: %w", txid, err)
	}

	meta := &model.TransactionMetadata{
		TxID:   txid,
		Fee:    fee,
		RawHex: res.Hex,
	}
	if res.BlockHash == "" || res.Confirmations <= 0 {
		return meta, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blockHash, err := chainhash.NewHashFromStr(res.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("parse block hash %s: %w", res.BlockHash, err)
	}
	header, err := p.rpc.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, fmt.Errorf("get block header %s: %w", res.BlockHash, err)
	}
	height, err := safe.Uint64(header.Height)
	if err != nil {
		return nil, fmt.Errorf("block %s height: %w", res.BlockHash, err)
	}

	meta.ConfirmedHeight = &height
	meta.ConfirmedBlockHash = res.BlockHash
	return meta, nil
}

// FetchRawTransaction returns the raw hex of a wallet transaction without looking up its
// confirmation height.
func (p *ChainPort) FetchRawTransaction(ctx context.Context, txid string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := p.getTransaction(txid)
	if err != nil {
		return "", err
	}
	return res.Hex, nil
}

func (p *ChainPort) getTransaction(txid string) (*btcjson.GetTransactionResult, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("parse txid %s: %w", txid, err)
	}
	res, err := p.rpc.GetTransaction(hash)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txid, err)
	}
	if res.Hex == "" {
		return nil, fmt.Errorf("transaction %s has no raw hex", txid)
	}
	return res, nil
}

// DecodeTransaction decodes raw transaction hex through decoderawtransaction.
func (p *ChainPort) DecodeTransaction(ctx context.Context, rawHex string) (*model.DecodedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rawHex == "" {
		return nil, errors.New("empty raw transaction")
	}

	serialized, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("decode raw transaction hex: %w", err)
	}
	res, err := p.rpc.DecodeRawTransaction(serialized)
	if err != nil {
		return nil, fmt.Errorf("decode raw transaction: %w", err)
	}
	return convertTransaction(*res)
}

// ResolveAddress resolves the script locally, no RPC round trip is made.
func (p *ChainPort) ResolveAddress(_ context.Context, script model.ScriptPubKey, network model.Network) (string, error) {
	return p.decoder.DecodeAddress(script, network)
}
