// Command whisper-fetch prints the datapoints of a whisper file over
// a time range, one "timestamp value" pair per line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GiantPlantsSociety/graphite-go/parser"
	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func main() {
	from := flag.String("from", "", "start of the time range")
	until := flag.String("until", "", "end of the time range")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s [--from FROM] [--until UNTIL] PATH\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	wsp, err := whisper.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer wsp.Close()

	now := whisper.Now()
	fromInterval, err := parser.Parse(*from, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	untilInterval, err := parser.Parse(*until, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if untilInterval == 0 {
		untilInterval = now
	}

	data, err := wsp.FetchUntil(fromInterval, untilInterval, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i, v := range data.Values {
		ts := data.FromInterval + uint32(i)*data.Step
		if v.IsNaN() {
			fmt.Printf("%d\tNone\n", ts)
		} else {
			fmt.Printf("%d\t%g\n", ts, float64(v))
		}
	}
}
