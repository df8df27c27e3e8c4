package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/GiantPlantsSociety/graphite-go/finder"
	"github.com/GiantPlantsSociety/graphite-go/internal/config"
	"github.com/GiantPlantsSociety/graphite-go/parser"
	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

// FindFormat selects the shape of a /metrics/find response.
type FindFormat string

const (
	FormatTreeJSON   FindFormat = "treejson"
	FormatCompleter  FindFormat = "completer"
	defaultFindFormat           = FormatTreeJSON
)

// FindQuery is the decoded form of a /metrics/find request. From/Until
// are accepted but currently unused by the handler, per spec §9(a):
// the surface is preserved rather than silently dropped.
type FindQuery struct {
	Query     string     `json:"query"`
	Format    FindFormat `json:"format"`
	Wildcards int        `json:"wildcards"`
	From      string     `json:"from"`
	Until     string     `json:"until"`
}

type metricResponseLeaf struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	IsLeaf bool   `json:"is_leaf"`
}

type metricResponse struct {
	Metrics []metricResponseLeaf `json:"metrics"`
}

type jsonTreeLeaf struct {
	Text          string `json:"text"`
	ID            string `json:"id"`
	AllowChildren int    `json:"allowChildren"`
	Expandable    int    `json:"expandable"`
	Leaf          int    `json:"leaf"`
}

func toJSONTreeLeaf(e finder.Entry) jsonTreeLeaf {
	if e.IsLeaf {
		return jsonTreeLeaf{Text: e.Path, ID: e.Name, AllowChildren: 0, Expandable: 0, Leaf: 1}
	}
	return jsonTreeLeaf{Text: e.Path, ID: e.Name, AllowChildren: 1, Expandable: 1, Leaf: 0}
}

// decodeFindQuery dispatches on Content-Type the way the original
// implementation does: form-encoded and JSON bodies are decoded as a
// POST body, anything else falls back to the URL query string.
func decodeFindQuery(r *http.Request) (FindQuery, error) {
	var q FindQuery

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			return q, err
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return q, err
		}
		q = findQueryFromValues(r.PostForm)
	default:
		if err := r.ParseForm(); err != nil {
			return q, err
		}
		q = findQueryFromValues(r.URL.Query())
	}

	if q.Format == "" {
		q.Format = defaultFindFormat
	}
	return q, nil
}

func findQueryFromValues(v map[string][]string) FindQuery {
	get := func(key string) string {
		if vals, ok := v[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	wildcards, _ := strconv.Atoi(get("wildcards"))
	return FindQuery{
		Query:     get("query"),
		Format:    FindFormat(get("format")),
		Wildcards: wildcards,
		From:      get("from"),
		Until:     get("until"),
	}
}

// HandleFind serves /metrics/find.
func HandleFind(args *config.Args) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := decodeFindQuery(r)
		if err != nil {
			badRequest(w, err)
			return
		}
		if q.Query == "" {
			badRequest(w, errParseQuery("query parameter is required"))
			return
		}

		// from/until are parsed to preserve the surface (§9(a)) even
		// though the result isn't consulted below.
		now := whisper.Now()
		if _, err := parser.Parse(q.From, now); err != nil {
			badRequest(w, err)
			return
		}
		if q.Until != "" {
			if _, err := parser.Parse(q.Until, now); err != nil {
				badRequest(w, err)
				return
			}
		}

		entries, err := finder.Find(args.DataDir, q.Query, q.Wildcards != 0)
		if err != nil {
			switch {
			case isNotFound(err):
				entries = nil
			default:
				badRequest(w, err)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		switch q.Format {
		case FormatCompleter:
			resp := metricResponse{Metrics: make([]metricResponseLeaf, len(entries))}
			for i, e := range entries {
				resp.Metrics[i] = metricResponseLeaf{Name: e.Name, Path: e.Path, IsLeaf: e.IsLeaf}
			}
			json.NewEncoder(w).Encode(resp)
		default:
			resp := make([]jsonTreeLeaf, len(entries))
			for i, e := range entries {
				resp[i] = toJSONTreeLeaf(e)
			}
			json.NewEncoder(w).Encode(resp)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, finder.ErrNotFound)
}

type parseQueryError struct{ msg string }

func (e *parseQueryError) Error() string { return e.msg }

func errParseQuery(msg string) error { return &parseQueryError{msg: msg} }
