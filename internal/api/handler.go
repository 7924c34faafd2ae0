package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/engine"
	"github.com/gyaneshwarpardhi/tillbook/internal/metrics"
)

const maxBatchSize = 1000

// Ingester accepts record batches and returns the stored ids.
type Ingester interface {
	AddTransactions(ctx context.Context, txs []domain.TransactionRecord) ([]string, error)
	AddPayouts(ctx context.Context, ps []domain.PayoutRecord) ([]string, error)
	AddDeposits(ctx context.Context, ds []domain.DepositRecord) ([]string, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	store  Ingester
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. loader may be nil,
// in which case reloads are refused.
func New(eng *engine.Engine, store Ingester, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, store: store, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/transactions", h.ingestTransactions)
	h.mux.HandleFunc("POST /v1/payouts", h.ingestPayouts)
	h.mux.HandleFunc("POST /v1/deposits", h.ingestDeposits)
	h.mux.HandleFunc("GET /v1/reports/revenue", h.revenueReport)
	h.mux.HandleFunc("GET /v1/reconciliation", h.reconciliation)
	h.mux.HandleFunc("GET /v1/alerts", h.alerts)
	h.mux.HandleFunc("GET /v1/settings", h.getSettings)
	h.mux.HandleFunc("POST /v1/settings/reload", h.reloadSettings)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return withRequestID(loggingMiddleware(recoverPanics(h.mux)))
}

// POST /v1/transactions: store a batch of transactions.
func (h *Handler) ingestTransactions(w http.ResponseWriter, r *http.Request) {
	var in []domain.TransactionRecord
	if !decodeBatch(w, r, &in, func() int { return len(in) }) {
		return
	}
	ids, err := h.store.AddTransactions(r.Context(), in)
	h.respondIngest(w, "transaction", ids, err)
}

// POST /v1/payouts: store a batch of platform payouts.
func (h *Handler) ingestPayouts(w http.ResponseWriter, r *http.Request) {
	var in []payoutIn
	if !decodeBatch(w, r, &in, func() int { return len(in) }) {
		return
	}
	ps := make([]domain.PayoutRecord, len(in))
	for i, p := range in {
		date, err := h.recordDate(p.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("payouts[%d]: %s", i, err))
			return
		}
		ps[i] = domain.PayoutRecord{ID: p.ID, Date: date, Amount: p.Amount, SourcePlatform: p.SourcePlatform}
	}
	ids, err := h.store.AddPayouts(r.Context(), ps)
	h.respondIngest(w, "payout", ids, err)
}

// POST /v1/deposits: store a batch of bank deposits.
func (h *Handler) ingestDeposits(w http.ResponseWriter, r *http.Request) {
	var in []depositIn
	if !decodeBatch(w, r, &in, func() int { return len(in) }) {
		return
	}
	ds := make([]domain.DepositRecord, len(in))
	for i, d := range in {
		date, err := h.recordDate(d.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("deposits[%d]: %s", i, err))
			return
		}
		ds[i] = domain.DepositRecord{ID: d.ID, Date: date, Amount: d.Amount, BankAccountID: d.BankAccountID}
	}
	ids, err := h.store.AddDeposits(r.Context(), ds)
	h.respondIngest(w, "deposit", ids, err)
}

func (h *Handler) respondIngest(w http.ResponseWriter, kind string, ids []string, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.RecordsIngested.WithLabelValues(kind).Add(float64(len(ids)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"accepted": len(ids),
		"ids":      ids,
	})
}

// GET /v1/reports/revenue: bucketed metric over a window.
func (h *Handler) revenueReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := h.windowFromQuery(q)
	if err != nil {
		writeErr(w, err)
		return
	}
	req := engine.ReportRequest{Window: win, Metric: q.Get("metric"), Source: q.Get("source")}
	if g := q.Get("grain"); g != "" {
		if req.Grain, err = calendar.ParseGrain(g); err != nil {
			writeErr(w, err)
			return
		}
	}
	rep, err := h.eng.Report(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /v1/reconciliation: per-account payout/deposit matching.
func (h *Handler) reconciliation(w http.ResponseWriter, r *http.Request) {
	win, err := h.windowFromQuery(r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}
	rep, err := h.eng.Reconcile(r.Context(), win)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /v1/alerts: evaluate alert rules over a window.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	win, err := h.windowFromQuery(r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}
	rep, err := h.eng.Alerts(r.Context(), win)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /v1/settings: the settings currently in effect.
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	s := h.eng.Settings()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": s.Source,
		"metrics":  h.eng.Metrics(),
		"rules":    ruleIDs(s),
	})
}

// POST /v1/settings/reload: re-read the settings file and apply it.
func (h *Handler) reloadSettings(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotImplemented, "settings are not file-backed")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	// The loader's change callbacks apply cfg; if the engine still runs the
	// previous settings, compilation failed.
	if h.eng.Settings().Source != cfg {
		if err := h.eng.Apply(cfg); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"rules":    ruleIDs(h.eng.Settings()),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the reconciliation queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

func ruleIDs(s *engine.Settings) []string {
	ids := make([]string, len(s.Rules))
	for i, r := range s.Rules {
		ids[i] = r.ID
	}
	return ids
}

func decodeBatch(w http.ResponseWriter, r *http.Request, v interface{}, n func() int) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	switch {
	case n() == 0:
		writeError(w, http.StatusBadRequest, "batch must contain at least one record")
		return false
	case n() > maxBatchSize:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", n(), maxBatchSize))
		return false
	}
	return true
}
