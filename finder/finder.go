// Package finder walks the filesystem-backed metric namespace: dotted
// metric queries like "app.hosts.web1.*" map onto directories (branches)
// and ".wsp" files (leaves) under a configured root.
package finder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when the query's prefix directory doesn't exist.
var ErrNotFound = errors.New("finder: prefix directory not found")

// ErrInvalidPattern is returned for a malformed glob segment.
type ErrInvalidPattern struct {
	Pos int
	Msg string
}

func (e *ErrInvalidPattern) Error() string {
	return fmt.Sprintf("finder: invalid pattern at position %d: %s", e.Pos, e.Msg)
}

// Entry is one result of a tree walk: a branch (directory) or leaf
// (.wsp file) matching the query's final segment pattern.
type Entry struct {
	Name   string
	Path   string
	IsLeaf bool
}

// Find resolves a dotted query like "a.b.c*" against files under root.
// If wildcards is set, "*" is appended to the last segment before
// matching. Results are sorted lexicographically by name.
func Find(root, query string, wildcards bool) ([]Entry, error) {
	prefixDir, pattern, err := splitQuery(query, wildcards)
	if err != nil {
		return nil, err
	}
	return walk(root, prefixDir, pattern)
}

// splitQuery separates a dotted query into its directory prefix (all
// but the last segment, joined with "/") and the glob pattern applied
// to the last segment.
func splitQuery(query string, wildcards bool) (prefixDir, pattern string, err error) {
	segments := strings.Split(query, ".")
	if len(segments) == 0 || query == "" {
		return "", "", &ErrInvalidPattern{Pos: 0, Msg: "empty query"}
	}

	pattern = segments[len(segments)-1]
	prefixDir = filepath.Join(segments[:len(segments)-1]...)

	if wildcards {
		pattern += "*"
	}

	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", "", &ErrInvalidPattern{Pos: len(query) - len(segments[len(segments)-1]), Msg: err.Error()}
	}
	return prefixDir, pattern, nil
}

// walk lists root/prefixDir, matching each entry's base name against
// pattern, and guards against the resolved directory escaping root.
func walk(root, prefixDir, pattern string) ([]Entry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	fullPath := filepath.Join(absRoot, prefixDir)
	resolved, err := filepath.Abs(fullPath)
	if err != nil {
		return nil, err
	}
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return nil, fmt.Errorf("finder: query escapes data root")
	}

	dirEntries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	dotted := strings.ReplaceAll(prefixDir, string(filepath.Separator), ".")

	var results []Entry
	for _, de := range dirEntries {
		name := de.Name()

		if de.IsDir() {
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return nil, &ErrInvalidPattern{Msg: err.Error()}
			}
			if matched {
				results = append(results, entry(name, dotted, false))
			}
			continue
		}

		if filepath.Ext(name) != ".wsp" {
			continue
		}
		stem := strings.TrimSuffix(name, ".wsp")
		matched, err := filepath.Match(pattern, stem)
		if err != nil {
			return nil, &ErrInvalidPattern{Msg: err.Error()}
		}
		if matched {
			results = append(results, entry(stem, dotted, true))
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func entry(name, dotDir string, isLeaf bool) Entry {
	path := name
	if dotDir != "" {
		path = dotDir + "." + name
	}
	return Entry{Name: name, Path: path, IsLeaf: isLeaf}
}
