// Command whisper-fill copies data from src to dst, without
// overwriting points dst already has.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GiantPlantsSociety/graphite-go/whisper"
)

func main() {
	_ = flag.Bool("lock", false, "lock whisper files (not implemented)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s [--lock] SRC DST\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	srcPath, dstPath := flag.Arg(0), flag.Arg(1)

	src, err := whisper.Open(srcPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer src.Close()

	dst, err := whisper.Open(dstPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer dst.Close()

	now := whisper.Now()
	if err := whisper.Fill(src, dst, now, now); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
