// Command logmaster runs the 5651 Kanunu compliance log-management
// pipeline: ingest (C3), device resolution (C1), the writer pool (C2),
// signing (C4), archival (C5), retention sweeping (C7), verification
// (C6) and compliance reporting (C8). Each concern is exposed as its own
// subcommand, the way original_source/scripts splits log_collector.py,
// digital_signer.py, archiver.py and compliance_report.py into
// independently schedulable programs rather than one monolith.
package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

const usage = `logmaster <command> [options]

Commands:
  serve             Run the syslog listener and writer pool (C1-C3)
  sign              Sweep sealed device files and sign them (C4)
  archive           Compress, verify and record eligible device files (C5)
  retention-sweep   Delete archives past their retention horizon (C7)
  verify            Re-verify a signed file or archive (C6)
  report            Generate a compliance report (C8)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(rest)
	case "sign":
		err = cmdSign(rest)
	case "archive":
		err = cmdArchive(rest)
	case "retention-sweep":
		err = cmdRetentionSweep(rest)
	case "verify":
		err = cmdVerify(rest)
	case "report":
		err = cmdReport(rest)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "logmaster: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "logmaster: %v\n", err)
		return 1
	}
	return 0
}

// newFlagSet builds a pflag.FlagSet in the style calvinalkan-agent-task's
// subcommands use: ContinueOnError with output suppressed so the caller
// controls error formatting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
