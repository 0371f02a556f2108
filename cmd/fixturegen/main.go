// The fixturegen command generates and verifies block test fixtures for
// derived chains.
//
// The 'run' subcommand evaluates scenario files against a transition engine:
//
//	fixturegen run -chain gnosis -base cancun -t8n evm -output fixtures ./scenarios/*.yaml
//
// The 'hash' subcommand computes the canonical hash of a JSON-encoded header:
//
//	fixturegen hash -rlp-out header.rlp header.json
package main

import (
	"fmt"
	"os"

	"gopkg.in/inconshreveable/log15.v2"
)

const usage = "Usage: fixturegen run|hash [ options ] ..."

func main() {
	setLogLevel(int(log15.LvlInfo))

	if len(os.Args) < 2 {
		fatalf(usage)
	}
	switch os.Args[1] {
	case "run":
		runCommand(os.Args[2:])
	case "hash":
		hashCommand(os.Args[2:])
	default:
		fatalf(usage)
	}
}

func setLogLevel(level int) {
	handler := log15.StreamHandler(os.Stderr, log15.TerminalFormat())
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(level), handler))
}

func fatalf(format string, args ...interface{}) {
	fatal(fmt.Errorf(format, args...))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
