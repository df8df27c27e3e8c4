package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GiantPlantsSociety/graphite-go/internal/config"
	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func mkRenderTree(t *testing.T) (*config.Args, uint32) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "servers"), 0o755))

	archives := []whisper.ArchiveInfo{{SecondsPerPoint: 1, Points: 100}}
	wsp, err := whisper.Create(filepath.Join(root, "servers", "cpu.wsp"), archives, 0, whisper.AggregationAverage)
	require.NoError(t, err)

	now := whisper.Now()
	require.NoError(t, wsp.Update(42, now, now))
	require.NoError(t, wsp.Close())

	return &config.Args{DataDir: root}, now
}

func TestHandleRenderJSON(t *testing.T) {
	args, now := mkRenderTree(t)

	req := httptest.NewRequest(http.MethodGet, "/render?target=servers.cpu&from=-10s", nil)
	rr := httptest.NewRecorder()
	HandleRender(args)(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var entries []struct {
		Target     string            `json:"target"`
		Datapoints [][2]*json.Number `json:"datapoints"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	entry := entries[0]
	if entry.Target != "servers.cpu" {
		t.Fatalf("unexpected target: %s", entry.Target)
	}
	require.NotEmpty(t, entry.Datapoints)

	found := false
	for _, dp := range entry.Datapoints {
		if dp[0] != nil {
			v, err := dp[0].Float64()
			require.NoError(t, err)
			if v == 42 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a datapoint with value 42 near timestamp %d", now)
	}
}

func TestHandleRenderRequiresTarget(t *testing.T) {
	args, _ := mkRenderTree(t)

	req := httptest.NewRequest(http.MethodGet, "/render", nil)
	rr := httptest.NewRecorder()
	HandleRender(args)(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleRenderUnknownFormatNotImplemented(t *testing.T) {
	args, _ := mkRenderTree(t)

	req := httptest.NewRequest(http.MethodGet, "/render?target=servers.cpu&format=png", nil)
	rr := httptest.NewRecorder()
	HandleRender(args)(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestHandleRenderMissingTargetFile(t *testing.T) {
	args, _ := mkRenderTree(t)

	req := httptest.NewRequest(http.MethodGet, "/render?target=servers.missing", nil)
	rr := httptest.NewRecorder()
	HandleRender(args)(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
