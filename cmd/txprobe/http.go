package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerclient/journal"
)

// newRouter serves probe metrics, liveness and the submission journal. A nil
// journal answers 404 on the journal routes.
func newRouter(gatherer prometheus.Gatherer, j *journal.Journal) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	jr := &journalRoutes{journal: j}
	r.Route("/journal", func(sr chi.Router) {
		sr.Get("/", jr.recent)
		sr.Get("/summary", jr.summary)
		sr.Get("/tx/{txID}", jr.byTransaction)
	})
	return r
}

type journalRoutes struct {
	journal *journal.Journal
}

var errJournalDisabled = errors.New("journal disabled")

func (jr *journalRoutes) recent(w http.ResponseWriter, r *http.Request) {
	if jr.journal == nil {
		writeJSONError(w, http.StatusNotFound, errJournalDisabled)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	rows, err := jr.journal.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (jr *journalRoutes) summary(w http.ResponseWriter, r *http.Request) {
	if jr.journal == nil {
		writeJSONError(w, http.StatusNotFound, errJournalDisabled)
		return
	}
	counts, err := jr.journal.Summary(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (jr *journalRoutes) byTransaction(w http.ResponseWriter, r *http.Request) {
	if jr.journal == nil {
		writeJSONError(w, http.StatusNotFound, errJournalDisabled)
		return
	}
	txID := strings.TrimSpace(chi.URLParam(r, "txID"))
	rows, err := jr.journal.ByTransaction(r.Context(), txID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if len(rows) == 0 {
		writeJSONError(w, http.StatusNotFound, errors.New("transaction not journaled"))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
