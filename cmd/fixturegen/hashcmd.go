package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/fixturegen/internal/libheader"
)

// hashCommand computes the canonical hash of a JSON-encoded header. The hash
// is the sole output on stdout; the encoding can optionally be written to a
// file for inspection.
func hashCommand(args []string) {
	var (
		rlpOut = flag.String("rlp-out", "", "Write the header RLP encoding to this file")
	)
	flag.CommandLine.Parse(args)
	if flag.NArg() != 1 {
		fatalf("Usage: fixturegen hash [ options ] <header.json>")
	}

	data, err := readInput(flag.Arg(0))
	if err != nil {
		fatal(err)
	}
	var header libheader.Header
	if err := json.Unmarshal(data, &header); err != nil {
		fatal(err)
	}

	enc, hash, err := header.Encode()
	if err != nil {
		fatal(err)
	}
	if *rlpOut != "" {
		if err := os.WriteFile(*rlpOut, enc, 0644); err != nil {
			fatal(err)
		}
	}
	fmt.Println(hash.Hex())
}

// readInput reads the given file, or stdin when the name is "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}
