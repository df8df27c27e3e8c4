// Package api implements the Graphite-style /metrics/find and /render
// HTTP endpoints over a finder.Find/whisper.Whisper-backed data root.
package api

import (
	"errors"
	"net/http"

	"github.com/GiantPlantsSociety/graphite-go/internal/log"
)

// ResponseError kinds, per spec §7.
var (
	ErrPathError = errors.New("api: invalid path")
)

// writeError translates an error into an HTTP response, logging it,
// per spec §7: engine errors propagate to the handler unchanged and
// are translated here.
func writeError(w http.ResponseWriter, err error, status int) {
	log.Warnf("request failed: %v", err)
	http.Error(w, err.Error(), status)
}

func notFound(w http.ResponseWriter, err error) {
	writeError(w, err, http.StatusNotFound)
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, err, http.StatusBadRequest)
}

func internalError(w http.ResponseWriter, err error) {
	writeError(w, err, http.StatusInternalServerError)
}

func notImplemented(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusNotImplemented)
}
