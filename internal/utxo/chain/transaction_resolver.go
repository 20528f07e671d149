package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"go.uber.org/zap"
)

// MatchPolicy decides how repeated recipient or change outputs are handled.
type MatchPolicy int

const (
	// LastMatchWins keeps the last matching output in iteration order.
	LastMatchWins MatchPolicy = iota
	// ExactlyOneMatchRequired fails with ErrAmbiguousOutputs when more than one output
	// pays the recipient or more than one output qualifies as change.
	ExactlyOneMatchRequired
)

const (
	lastMatchWinsName           = "last-match-wins"
	exactlyOneMatchRequiredName = "exactly-one-match"
)

// ParseMatchPolicy maps a flag value onto a MatchPolicy.
func ParseMatchPolicy(value string) (MatchPolicy, error) {
	switch value {
	case "", lastMatchWinsName:
		return LastMatchWins, nil
	case exactlyOneMatchRequiredName:
		return ExactlyOneMatchRequired, nil
	default:
		return 0, fmt.Errorf("unsupported match policy %q", value)
	}
}

func (p MatchPolicy) String() string {
	switch p {
	case LastMatchWins:
		return lastMatchWinsName
	case ExactlyOneMatchRequired:
		return exactlyOneMatchRequiredName
	default:
		return fmt.Sprintf("MatchPolicy(%d)", int(p))
	}
}

// AllInputs makes the resolver look up the origin of every input.
const AllInputs = -1

const defaultInputDepth = 1

// Degradation reasons reported when an input origin cannot be recovered.
const (
	reasonNoPrevOut         = "no_prevout"
	reasonPrevTxFetch       = "prev_tx_fetch"
	reasonPrevTxDecode      = "prev_tx_decode"
	reasonVoutOutOfRange    = "vout_out_of_range"
	reasonAddressUnresolved = "address_unresolved"
)

// Options tune TransactionResolver behaviour. The zero value matches the plain report format:
// last match wins and only the first input is resolved.
type Options struct {
	MatchPolicy MatchPolicy
	// InputDepth is the number of leading inputs whose origin is looked up.
	// Zero selects the default of one, AllInputs selects every input.
	InputDepth int
}

// TransactionResolver reconstructs the economic view of a confirmed transaction.
type TransactionResolver struct {
	port       ChainDataPort
	coin       model.Coin
	network    model.Network
	policy     MatchPolicy
	inputDepth int
	metrics    ResolverMetrics
	logger     *zap.Logger
}

// NewTransactionResolver constructs a resolver reading chain data through port.
func NewTransactionResolver(
	port ChainDataPort,
	coin model.Coin,
	network model.Network,
	opts Options,
	metrics ResolverMetrics,
	logger *zap.Logger,
) (*TransactionResolver, error) {
	if port == nil {
		return nil, errors.New("chain data port is required")
	}
	if metrics == nil {
		return nil, errors.New("resolver metrics is required")
	}
	if opts.MatchPolicy != LastMatchWins && opts.MatchPolicy != ExactlyOneMatchRequired {
		return nil, fmt.Errorf("unsupported match policy %s", opts.MatchPolicy)
	}

	depth := opts.InputDepth
	switch {
	case depth == 0:
		depth = defaultInputDepth
	case depth < AllInputs:
		return nil, fmt.Errorf("invalid input depth %d", depth)
	}

	return &TransactionResolver{
		port:       port,
		coin:       coin,
		network:    network,
		policy:     opts.MatchPolicy,
		inputDepth: depth,
		metrics:    metrics,
		logger: logger.Named("transactionResolver").With(
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
		),
	}, nil
}

// Resolve summarizes txid, treating outputs paying recipient as the payment and any other
// addressable output as change. No partial record is returned on error.
func (r *TransactionResolver) Resolve(ctx context.Context, txid, recipient string) (record model.TransactionRecord, err error) {
	started := time.Now()
	defer func() {
		r.metrics.ObserveResolve(err, started)
	}()

	record, err = r.resolve(ctx, txid, recipient)
	if err != nil {
		return model.TransactionRecord{}, err
	}
	return record, nil
}

func (r *TransactionResolver) resolve(ctx context.Context, txid, recipient string) (model.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.TransactionRecord{}, err
	}

	meta, err := r.port.FetchTransaction(ctx, txid)
	if err != nil {
		return model.TransactionRecord{}, chainAccess("fetch transaction", txid, err)
	}
	if meta == nil {
		return model.TransactionRecord{}, chainAccess("fetch transaction", txid, errors.New("empty result"))
	}
	if !meta.Confirmed() {
		return model.TransactionRecord{}, fmt.Errorf("%w: %s", ErrNotConfirmed, txid)
	}

	tx, err := r.port.DecodeTransaction(ctx, meta.RawHex)
	if err != nil {
		return model.TransactionRecord{}, chainAccess("decode transaction", txid, err)
	}
	if tx == nil {
		return model.TransactionRecord{}, chainAccess("decode transaction", txid, errors.New("empty result"))
	}

	inputs := r.resolveInputs(ctx, txid, tx.Inputs)

	outputs, err := r.resolveOutputs(ctx, txid, recipient, tx.Outputs)
	if err != nil {
		return model.TransactionRecord{}, err
	}

	fee := meta.Fee
	if fee < 0 {
		fee = -fee
	}

	return model.TransactionRecord{
		Coin:               r.coin,
		Network:            r.network,
		TxID:               txid,
		Fee:                fee,
		ConfirmedHeight:    *meta.ConfirmedHeight,
		ConfirmedBlockHash: meta.ConfirmedBlockHash,
		Inputs:             inputs,
		Outputs:            outputs,
	}, nil
}

func (r *TransactionResolver) resolveInputs(ctx context.Context, txid string, vin []model.DecodedInput) []model.Endpoint {
	count := len(vin)
	if r.inputDepth != AllInputs && r.inputDepth < count {
		count = r.inputDepth
	}

	endpoints := make([]model.Endpoint, 0, count)
	for idx := 0; idx < count; idx++ {
		endpoint, reason, cause := r.resolveInput(ctx, vin[idx])
		if reason != "" {
			r.metrics.ObserveInputDegraded(reason)
			fields := []zap.Field{
				zap.String("txid", txid),
				zap.Int("input", idx),
				zap.String("reason", reason),
			}
			if cause != nil {
				fields = append(fields, zap.Error(cause))
			}
			if reason == reasonNoPrevOut {
				r.logger.Debug("input has no previous output", fields...)
			} else {
				r.logger.Warn("input origin unresolved", fields...)
			}
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}

// resolveInput never fails; a non-empty reason means the zero endpoint was substituted.
func (r *TransactionResolver) resolveInput(ctx context.Context, in model.DecodedInput) (model.Endpoint, string, error) {
	if !in.HasPrevOut() {
		return model.Endpoint{}, reasonNoPrevOut, nil
	}

	prevHex, err := r.fetchRawHex(ctx, in.PrevTxID)
	if err != nil {
		return model.Endpoint{}, reasonPrevTxFetch, err
	}

	prevTx, err := r.port.DecodeTransaction(ctx, prevHex)
	if err != nil {
		return model.Endpoint{}, reasonPrevTxDecode, err
	}
	if prevTx == nil {
		return model.Endpoint{}, reasonPrevTxDecode, nil
	}

	vout := *in.PrevVout
	if uint64(vout) >= uint64(len(prevTx.Outputs)) {
		return model.Endpoint{}, reasonVoutOutOfRange, fmt.Errorf("vout %d of %d outputs", vout, len(prevTx.Outputs))
	}
	prevOut := prevTx.Outputs[vout]

	address, err := r.port.ResolveAddress(ctx, prevOut.ScriptPubKey, r.network)
	if err != nil {
		return model.Endpoint{}, reasonAddressUnresolved, err
	}
	if address == "" {
		return model.Endpoint{}, reasonAddressUnresolved, nil
	}

	return model.Endpoint{Address: address, Amount: prevOut.Amount}, "", nil
}

func (r *TransactionResolver) fetchRawHex(ctx context.Context, txid string) (string, error) {
	if fetcher, ok := r.port.(RawTransactionFetcher); ok {
		return fetcher.FetchRawTransaction(ctx, txid)
	}

	meta, err := r.port.FetchTransaction(ctx, txid)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "", errors.New("empty result")
	}
	return meta.RawHex, nil
}

func (r *TransactionResolver) resolveOutputs(
	ctx context.Context,
	txid string,
	recipient string,
	vout []model.DecodedOutput,
) (model.Outputs, error) {
	var (
		outputs        model.Outputs
		recipientCount int
		changeCount    int
	)

	for idx, out := range vout {
		address, err := r.port.ResolveAddress(ctx, out.ScriptPubKey, r.network)
		if err != nil {
			return model.Outputs{}, chainAccess("resolve output address", txid, fmt.Errorf("output %d: %w", idx, err))
		}

		switch {
		case address == "":
		case address == recipient:
			outputs.Primary = model.Endpoint{Address: address, Amount: out.Amount}
			recipientCount++
		default:
			change := model.Endpoint{Address: address, Amount: out.Amount}
			outputs.Change = &change
			changeCount++
		}
	}

	if r.policy == ExactlyOneMatchRequired && (recipientCount > 1 || changeCount > 1) {
		return model.Outputs{}, fmt.Errorf(
			"%w: tx %s has %d recipient and %d change outputs",
			ErrAmbiguousOutputs, txid, recipientCount, changeCount,
		)
	}
	if changeCount > 1 {
		r.logger.Debug("multiple change candidates, keeping the last",
			zap.String("txid", txid),
			zap.Int("change_outputs", changeCount),
		)
	}

	return outputs, nil
}
