package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/GiantPlantsSociety/graphite-go/internal/config"
	"github.com/GiantPlantsSociety/graphite-go/internal/log"
)

// logWriter adapts the access-log middleware's io.Writer expectation
// to the leveled logger, one access-log line per Write call.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Infof("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewRouter builds the HTTP router serving /metrics/find and /render,
// wrapped in access-log middleware.
func NewRouter(args *config.Args) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/metrics/find", HandleFind(args)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/metrics/find/", HandleFind(args)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/render", HandleRender(args)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/render/", HandleRender(args)).Methods(http.MethodGet, http.MethodPost)

	return handlers.CombinedLoggingHandler(logWriter{}, r)
}

// NewServer wires NewRouter into an *http.Server listening at args.Addr.
func NewServer(args *config.Args) *http.Server {
	return &http.Server{
		Addr:         args.Addr,
		Handler:      NewRouter(args),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
