// Package server exposes the simulator's control surface over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clint/device/pic"
	"clint/sim/api"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Board is the part of the simulated board the control surface drives.
// Implementations must be safe for concurrent use.
type Board interface {
	Raise(line int) error
	Status() []api.LineStatus
}

// NewRouter returns the handler serving the control surface:
//
//	POST /irq/{line}   raise a software interrupt
//	GET  /handlers     status of every configured interrupt source
//	GET  /metrics      Prometheus metrics
func NewRouter(b Board, metrics http.Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(accessLog(log))
	r.Use(chimw.Recoverer)

	r.Post("/irq/{line}", raise(b))
	r.Get("/handlers", handlers(b))
	r.Method(http.MethodGet, "/metrics", metrics)

	return r
}

func raise(b Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		line, err := strconv.Atoi(chi.URLParam(r, "line"))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("line must be an integer"))
			return
		}

		switch err := b.Raise(line); {
		case errors.Is(err, pic.ErrNoSuchLine):
			writeError(w, http.StatusNotFound, err)
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
		default:
			writeJSON(w, http.StatusAccepted, api.RaiseResponse{Line: line, Status: "raised"})
		}
	}
}

func handlers(b Board) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.Status())
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// accessLog logs one record per request once the response was written.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("request",
					zap.String("requestId", chimw.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("uri", r.URL.Path),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Duration("lat", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
