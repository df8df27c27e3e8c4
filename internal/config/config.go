// Package config holds the immutable server configuration, built once
// from CLI flags in main and passed by reference into handlers,
// per spec §9's "shared global Args/config" note: no package-level
// mutable state, just an explicit pointer threaded through.
package config

import (
	"flag"
	"strconv"
)

// Args is the server's runtime configuration.
type Args struct {
	// DataDir is the filesystem root the metric tree is rooted at.
	DataDir string
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Force creates DataDir on startup if it doesn't already exist.
	Force bool
	// LogLevel controls verbosity: debug, info, warn, err.
	LogLevel string
}

// ParseFlags builds an Args from the standard flag set, matching the
// server CLI surface of spec §6: --path, --port, --force.
func ParseFlags(fs *flag.FlagSet, args []string) (*Args, error) {
	a := &Args{}
	var port int

	fs.StringVar(&a.DataDir, "path", ".", "data root directory")
	fs.IntVar(&port, "port", 8080, "listen port")
	fs.BoolVar(&a.Force, "force", false, "create the data root if it does not exist")
	fs.StringVar(&a.LogLevel, "log-level", "info", "log level: debug, info, warn, err")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	a.Addr = portToAddr(port)
	return a, nil
}

func portToAddr(port int) string {
	if port <= 0 {
		return ":8080"
	}
	return ":" + strconv.Itoa(port)
}
