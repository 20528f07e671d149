// Package transport exposes HTTP handlers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/report"
	"go.uber.org/zap"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// statusClientClosedRequest is reported when the caller goes away before the report is resolved.
const statusClientClosedRequest = 499

type endpointResponse struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	AmountSat int64  `json:"amount_sat"`
}

// reportResponse carries the requested recipient address, as line 4 of the text report does,
// while primary_output is the output that actually paid it and is empty when none did.
type reportResponse struct {
	TxID          string             `json:"txid"`
	Coin          string             `json:"coin"`
	Network       string             `json:"network"`
	Inputs        []endpointResponse `json:"inputs"`
	Recipient     endpointResponse   `json:"recipient"`
	PrimaryOutput endpointResponse   `json:"primary_output"`
	Change        *endpointResponse  `json:"change"`
	Fee           string             `json:"fee"`
	FeeSat        int64              `json:"fee_sat"`
	BlockHeight   uint64             `json:"block_height"`
	BlockHash     string             `json:"block_hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReportHandler serves transaction reports over HTTP.
type ReportHandler struct {
	resolver TransactionResolver
	sink     ReportSink
	metrics  Metrics
	logger   *zap.Logger
}

// NewReportHandler returns a ReportHandler. sink may be nil.
func NewReportHandler(resolver TransactionResolver, sink ReportSink, metrics Metrics, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		resolver: resolver,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.Named("reportHandler"),
	}
}

// Register mounts the handler routes on mux.
func (h *ReportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/transactions/{txid}/report", h.Report)
	mux.HandleFunc("GET /healthz", h.Health)
}

// Health reports server health.
func (h *ReportHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Report resolves the transaction in the path against the recipient query parameter.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	txid := r.PathValue("txid")
	recipient := r.URL.Query().Get("recipient")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}

	code := h.report(w, r, txid, recipient, format)
	h.metrics.ObserveRequest(format, code, started)
}

func (h *ReportHandler) report(w http.ResponseWriter, r *http.Request, txid, recipient, format string) int {
	if format != formatJSON && format != formatText {
		return h.writeError(w, http.StatusBadRequest, "format must be json or text")
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil || len(txid) != chainhash.MaxHashStringSize {
		return h.writeError(w, http.StatusBadRequest, "txid must be a 64 character hex string")
	}
	if recipient == "" {
		return h.writeError(w, http.StatusBadRequest, "recipient query parameter is required")
	}

	rec, err := h.resolver.Resolve(r.Context(), txid, recipient)
	if err != nil {
		code := statusForError(err)
		if code >= http.StatusInternalServerError && code != http.StatusGatewayTimeout {
			h.logger.Error("resolve transaction", zap.String("txid", txid), zap.Error(err))
		}
		return h.writeError(w, code, err.Error())
	}

	if h.sink != nil {
		if err := h.sink.Add(r.Context(), rec); err != nil {
			h.logger.Warn("report not queued for storage", zap.String("txid", txid), zap.Error(err))
		}
	}

	if format == formatText {
		var buf bytes.Buffer
		if err := report.Write(&buf, rec, recipient); err != nil {
			return h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return http.StatusOK
	}
	return h.writeJSON(w, http.StatusOK, toResponse(rec, recipient))
}

func statusForError(err error) int {
	var accessErr *chain.ChainAccessError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, chain.ErrNotConfirmed):
		return http.StatusConflict
	case errors.Is(err, chain.ErrAmbiguousOutputs):
		return http.StatusUnprocessableEntity
	case errors.As(err, &accessErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *ReportHandler) writeError(w http.ResponseWriter, code int, msg string) int {
	return h.writeJSON(w, code, errorResponse{Error: msg})
}

func (h *ReportHandler) writeJSON(w http.ResponseWriter, code int, body any) int {
	payload, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(code)
	_, _ = w.Write(payload)
	return code
}

func toResponse(rec model.TransactionRecord, recipient string) reportResponse {
	inputs := make([]endpointResponse, 0, len(rec.Inputs))
	for _, in := range rec.Inputs {
		inputs = append(inputs, toEndpoint(in))
	}

	resp := reportResponse{
		TxID:        rec.TxID,
		Coin:        string(rec.Coin),
		Network:     string(rec.Network),
		Inputs:      inputs,
		Recipient:     toEndpoint(model.Endpoint{Address: recipient, Amount: rec.Outputs.Primary.Amount}),
		PrimaryOutput: toEndpoint(rec.Outputs.Primary),
		Fee:           report.FormatAmount(rec.Fee),
		FeeSat:        int64(rec.Fee),
		BlockHeight:   rec.ConfirmedHeight,
		BlockHash:     rec.ConfirmedBlockHash,
	}
	if rec.Outputs.Change != nil {
		change := toEndpoint(*rec.Outputs.Change)
		resp.Change = &change
	}
	return resp
}

func toEndpoint(e model.Endpoint) endpointResponse {
	return endpointResponse{
		Address:   e.Address,
		Amount:    report.FormatAmount(e.Amount),
		AmountSat: int64(e.Amount),
	}
}
