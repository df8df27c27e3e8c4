// Command whisper-dump prints the metadata, archive layout and raw
// slot contents of a whisper file.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func main() {
	pretty := flag.Bool("pretty", false, "print point timestamps using the -t layout instead of raw epoch seconds")
	layout := flag.String("t", time.RFC3339, "time layout used with --pretty (Go reference-time format)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s [--pretty] [-t LAYOUT] PATH\n", os.Args[0])
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

	info := wsp.Info()
	fmt.Printf("File: %s\n", path)
	fmt.Printf("Aggregation method: %s\n", whisper.AggregationMethodName(info.Metadata.AggregationMethod))
	fmt.Printf("Max retention: %d\n", info.Metadata.MaxRetention)
	fmt.Printf("X-Files Factor: %g\n", info.Metadata.XFilesFactor)
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "archive\tseconds/point\tpoints\tretention")
	for i, a := range info.Archives {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", i, a.SecondsPerPoint, a.Points, a.Retention())
	}
	tw.Flush()

	for i, a := range info.Archives {
		fmt.Printf("\nArchive %d (%d seconds/point):\n", i, a.SecondsPerPoint)
		points, err := wsp.Dump(a.SecondsPerPoint)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		atw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(atw, "slot\ttimestamp\tvalue")
		for slot, p := range points {
			ts := formatTimestamp(p.Interval, *pretty, *layout)
			if p.Value.IsNaN() {
				fmt.Fprintf(atw, "%d\t%s\tNone\n", slot, ts)
			} else {
				fmt.Fprintf(atw, "%d\t%s\t%g\n", slot, ts, float64(p.Value))
			}
		}
		atw.Flush()
	}
}

func formatTimestamp(interval uint32, pretty bool, layout string) string {
	if !pretty {
		return fmt.Sprintf("%d", interval)
	}
	return time.Unix(int64(interval), 0).UTC().Format(layout)
}
