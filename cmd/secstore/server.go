package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwantia/secstore"
	"github.com/mwantia/secstore/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type stateResponse struct {
	State string `json:"state"`
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}

// newRouter exposes health, metrics and the restore signal over HTTP.
func newRouter(engine *secstore.Engine, gatherer prometheus.Gatherer, logger *log.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		switch engine.State() {
		case secstore.StateUninitialized, secstore.StateInitializing:
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, logger, status, newStateResponse(engine, nil))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/restore", func(w http.ResponseWriter, r *http.Request) {
		source := "http:" + r.RemoteAddr
		if err := engine.HandleRestore(r.Context(), source); err != nil {
			writeJSON(w, logger, http.StatusServiceUnavailable, newStateResponse(engine, err))
			return
		}

		writeJSON(w, logger, http.StatusOK, newStateResponse(engine, nil))
	})

	return r
}

func newStateResponse(engine *secstore.Engine, err error) stateResponse {
	resp := stateResponse{
		State: engine.State().String(),
		Items: engine.Tracker().Len(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	return resp
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("json encode failed: %v", err)
	}
}
