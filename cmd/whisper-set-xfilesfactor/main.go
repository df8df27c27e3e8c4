// Command whisper-set-xfilesfactor sets the xFilesFactor of an
// existing whisper file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s PATH XFILESFACTOR\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)
	xff, err := strconv.ParseFloat(flag.Arg(1), 32)
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

	oldXFF := wsp.Info().Metadata.XFilesFactor
	if err := wsp.SetXFilesFactor(float32(xff)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Updated xFilesFactor: %s (%g -> %g)\n", path, oldXFF, xff)
}
