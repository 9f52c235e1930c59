package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
)

func main() {
	log.SetHandler(clihandler.Default)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "walk":
		err = cmdWalk(os.Args[2:])
	case "emit":
		err = cmdEmit(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "calls":
		err = cmdCalls(os.Args[2:])
	case "inspect":
		err = cmdInspect(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `drgsdk — host metadata walker and SDK generator

Usage:
  drgsdk walk    --dump <file> --base <addr> --root <addr> --out <dir>   Walk a memory dump and write the SDK artifact
  drgsdk emit    --artifact <json> --out <file>                          Re-emit SDK source from an artifact
  drgsdk graph   --artifact <json> [--out <file>]                        Render the class inheritance graph as DOT
  drgsdk calls   --dump <file> --base <addr> --artifact <json>           Recover the native call graph (or one CFG with --func)
  drgsdk inspect --artifact <json> [--classes]                           Summarize an artifact

Flags:
  --dump <file>         Raw memory dump of the host module
  --base <addr>         Address the dump was captured at (0x-prefixed or decimal)
  --root <addr>         Address of the metadata root record
  --out <path>          Output directory or file
  --profile <id>        Metadata layout profile (default u4.27)
  --host-version <v>    Host version recorded in the artifact
  --best-effort         Record recoverable oddities instead of failing
  --max-steps <n>       Walk step budget
  --max-classes <n>     Visited-set capacity
  --max-bytes <n>       Generated source size cap
`)
}

// parseAddr accepts Go literal address forms on the command line.
func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return v, nil
}
