package rpcclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/ratelimit"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}

	// NodeClient is the subset of *rpcclient.Client used by the reporting tools.
	NodeClient interface {
		GetBlockCount() (int64, error)
		GetTransaction(txHash *chainhash.Hash) (*btcjson.GetTransactionResult, error)
		GetBlockHeaderVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
		DecodeRawTransaction(serializedTx []byte) (*btcjson.TxRawResult, error)
		RawRequest(method string, params []json.RawMessage) (json.RawMessage, error)
		CreateWallet(name string, opts ...rpcclient.CreateWalletOpt) (*btcjson.CreateWalletResult, error)
		GetNewAddress(account string) (btcutil.Address, error)
		GetBalance(account string) (btcutil.Amount, error)
		GenerateToAddress(numBlocks int64, address btcutil.Address, maxTries *int64) ([]*chainhash.Hash, error)
		SendToAddress(address btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error)
		GetMempoolEntry(txHash string) (*btcjson.GetMempoolEntryResult, error)
	}
)

var _ NodeClient = (*rpcclient.Client)(nil)

// allWallets is the only value Bitcoin Core accepts for the deprecated getbalance account argument.
const allWallets = "*"

// ObservedClient rate limits node calls and records their outcome.
type ObservedClient struct {
	client     NodeClient
	rpcMetrics RPCMetrics
	limiter    ratelimit.Limiter
}

// NewObservedClient wraps client. A nil limiter disables rate limiting.
func NewObservedClient(client NodeClient, rpcMetrics RPCMetrics, limiter ratelimit.Limiter) *ObservedClient {
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}
	return &ObservedClient{
		client:     client,
		rpcMetrics: rpcMetrics,
		limiter:    limiter,
	}
}

func (r *ObservedClient) begin() time.Time {
	r.limiter.Take()
	return time.Now()
}

func (r *ObservedClient) GetBlockCount() (count int64, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_block_count", err, started)
	}()
	return r.client.GetBlockCount()
}

func (r *ObservedClient) GetTransaction(txHash *chainhash.Hash) (res *btcjson.GetTransactionResult, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_transaction", err, started)
	}()
	return r.client.GetTransaction(txHash)
}

func (r *ObservedClient) GetBlockHeaderVerbose(blockHash *chainhash.Hash) (res *btcjson.GetBlockHeaderVerboseResult, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_block_header_verbose", err, started)
	}()
	return r.client.GetBlockHeaderVerbose(blockHash)
}

func (r *ObservedClient) DecodeRawTransaction(serializedTx []byte) (res *btcjson.TxRawResult, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("decode_raw_transaction", err, started)
	}()
	return r.client.DecodeRawTransaction(serializedTx)
}

// ListWallets returns the names of wallets loaded by the node.
func (r *ObservedClient) ListWallets() (wallets []string, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("list_wallets", err, started)
	}()

	raw, err := r.client.RawRequest("listwallets", nil)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("unmarshal listwallets result: %w", err)
	}
	return wallets, nil
}

// CreateWallet creates and loads a wallet with default options.
func (r *ObservedClient) CreateWallet(name string) (err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("create_wallet", err, started)
	}()
	_, err = r.client.CreateWallet(name)
	return err
}

func (r *ObservedClient) GetNewAddress(label string) (addr btcutil.Address, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_new_address", err, started)
	}()
	return r.client.GetNewAddress(label)
}

// GetBalance returns the trusted balance of the wallet the client is bound to.
func (r *ObservedClient) GetBalance() (balance btcutil.Amount, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_balance", err, started)
	}()
	return r.client.GetBalance(allWallets)
}

func (r *ObservedClient) GenerateToAddress(numBlocks int64, address btcutil.Address) (hashes []*chainhash.Hash, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("generate_to_address", err, started)
	}()
	return r.client.GenerateToAddress(numBlocks, address, nil)
}

func (r *ObservedClient) SendToAddress(address btcutil.Address, amount btcutil.Amount) (hash *chainhash.Hash, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("send_to_address", err, started)
	}()
	return r.client.SendToAddress(address, amount)
}

func (r *ObservedClient) GetMempoolEntry(txHash string) (res *btcjson.GetMempoolEntryResult, err error) {
	started := r.begin()
	defer func() {
		r.rpcMetrics.Observe("get_mempool_entry", err, started)
	}()
	return r.client.GetMempoolEntry(txHash)
}
