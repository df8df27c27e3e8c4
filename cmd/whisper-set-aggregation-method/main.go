// Command whisper-set-aggregation-method sets the consolidation
// function an existing whisper file uses when propagating values into
// coarser archives.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s PATH METHOD\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "METHOD is one of: average, sum, last, max, min, avg_zero, absmax, absmin")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	method, err := whisper.ParseAggregationMethod(flag.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	wsp, err := whisper.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer wsp.Close()

	oldMethod := whisper.AggregationMethodName(wsp.Info().Metadata.AggregationMethod)
	if err := wsp.SetAggregationMethod(method); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Updated aggregation method: %s (%s -> %s)\n", path, oldMethod, flag.Arg(1))
}
