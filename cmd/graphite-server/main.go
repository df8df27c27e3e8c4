// Command graphite-server serves /metrics/find and /render over a
// directory tree of whisper files.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GiantPlantsSociety/graphite-go/api"
	"github.com/GiantPlantsSociety/graphite-go/internal/config"
	"github.com/GiantPlantsSociety/graphite-go/internal/log"
)

func main() {
	args, err := config.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetLevel(args.LogLevel)

	if info, err := os.Stat(args.DataDir); err != nil {
		if !os.IsNotExist(err) || !args.Force {
			log.Errorf("data root %q: %v", args.DataDir, err)
			os.Exit(1)
		}
		if err := os.MkdirAll(args.DataDir, 0o755); err != nil {
			log.Errorf("failed to create data root %q: %v", args.DataDir, err)
			os.Exit(1)
		}
	} else if !info.IsDir() {
		log.Errorf("data root %q is not a directory", args.DataDir)
		os.Exit(1)
	}

	server := api.NewServer(args)
	log.Infof("listening at %s, data root %s", args.Addr, args.DataDir)
	if err := server.ListenAndServe(); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
