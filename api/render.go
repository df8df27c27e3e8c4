package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GiantPlantsSociety/graphite-go/internal/config"
	"github.com/GiantPlantsSociety/graphite-go/internal/log"
	"github.com/GiantPlantsSociety/graphite-go/parser"
	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

// RenderQuery is the decoded form of a /render request.
type RenderQuery struct {
	Target []string `json:"target"`
	Format string   `json:"format"`
	From   string   `json:"from"`
	Until  string   `json:"until"`
}

// renderPoint is (value, timestamp), matching the wire tuple shape
// exactly: [value_or_null, timestamp].
type renderPoint struct {
	value whisper.Value
	stamp uint32
}

func (p renderPoint) MarshalJSON() ([]byte, error) {
	v, err := p.value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte("[" + string(v) + "," + strconv.FormatUint(uint64(p.stamp), 10) + "]"), nil
}

type renderResponseEntry struct {
	Target     string        `json:"target"`
	Datapoints []renderPoint `json:"datapoints"`
}

func decodeRenderQuery(r *http.Request) (RenderQuery, error) {
	var q RenderQuery

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			return q, err
		}
		return q, nil
	}

	if err := r.ParseForm(); err != nil {
		return q, err
	}
	values := r.Form
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		values = r.PostForm
	}

	q.Target = values["target"]
	q.Format = firstOr(values["format"], "json")
	q.From = firstOr(values["from"], "")
	q.Until = firstOr(values["until"], "")
	return q, nil
}

func firstOr(vals []string, def string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return def
}

// targetPath converts a dotted metric name into its whisper file path
// under root, per spec §4.H: target.split('.').join('/') + ".wsp".
func targetPath(root, target string) string {
	return filepath.Join(root, strings.ReplaceAll(target, ".", string(filepath.Separator))+".wsp")
}

// HandleRender serves /render. A failure on any single target fails
// the whole request: spec §7 rules out a partial-success envelope.
func HandleRender(args *config.Args) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := decodeRenderQuery(r)
		if err != nil {
			badRequest(w, err)
			return
		}
		if len(q.Target) == 0 {
			badRequest(w, errParseQuery("target parameter is required"))
			return
		}

		if q.Format != "" && q.Format != "json" {
			notImplemented(w, "render format "+q.Format+" is not implemented")
			return
		}

		now := whisper.Now()
		from, err := parser.Parse(q.From, now)
		if err != nil {
			badRequest(w, err)
			return
		}
		until, err := parser.Parse(q.Until, now)
		if err != nil {
			badRequest(w, err)
			return
		}
		if until == 0 {
			until = now
		}

		entries := make([]renderResponseEntry, len(q.Target))
		for i, target := range q.Target {
			points, err := fetchTarget(args.DataDir, target, from, until, now)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					notFound(w, fmt.Errorf("%w: %s", ErrPathError, target))
				} else {
					internalError(w, err)
				}
				return
			}
			entries[i] = renderResponseEntry{Target: target, Datapoints: points}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Errorf("failed to encode render response: %v", err)
		}
	}
}

func fetchTarget(root, target string, from, until, now uint32) ([]renderPoint, error) {
	path := targetPath(root, target)
	wsp, err := whisper.Open(path)
	if err != nil {
		return nil, err
	}
	defer wsp.Close()

	data, err := wsp.FetchUntil(from, until, now)
	if err != nil {
		return nil, err
	}

	points := make([]renderPoint, len(data.Values))
	for i, v := range data.Values {
		points[i] = renderPoint{value: v, stamp: data.FromInterval + uint32(i)*data.Step}
	}
	return points, nil
}
