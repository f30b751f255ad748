// Command reconcile compares a payment-gateway settlement export against the
// wallet's recorded deposits and reports matches, gaps, and candidates for
// the missing difference.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/crmops/wallet/internal/recon"
)

func main() {
	var (
		gatewayPath  = flag.String("gateway", "", "path to the gateway settlement CSV (date,id,counterparty_ref,amount)")
		recordedPath = flag.String("recorded", "", "path to the recorded deposits CSV (date,amount)")
		adjust       = flag.String("adjust", "", "optional adjustment amount to add to the recorded total, e.g. 1198.00")
		note         = flag.String("note", "", "label for the adjustment line in the report")
		tolerance    = flag.Int64("tolerance", recon.DefaultGapToleranceMinor, "gap candidate tolerance in minor units")
		asJSON       = flag.Bool("json", false, "emit the full report as JSON instead of text")
	)
	flag.Parse()

	if *gatewayPath == "" || *recordedPath == "" {
		fmt.Fprintln(os.Stderr, "both -gateway and -recorded are required")
		flag.Usage()
		os.Exit(2)
	}

	gateway, err := recon.ReadGatewayCSV(*gatewayPath)
	if err != nil {
		fatal("read gateway csv: %v", err)
	}
	recorded, err := recon.ReadRecordedCSV(*recordedPath)
	if err != nil {
		fatal("read recorded csv: %v", err)
	}

	opts := recon.Options{GapToleranceMinor: *tolerance, AdjustmentNote: *note}
	if *adjust != "" {
		minor, err := recon.ParseDecimalToMinor(*adjust)
		if err != nil {
			fatal("parse -adjust: %v", err)
		}
		opts.AdjustmentMinor = minor
	}

	report := recon.Run(gateway, recorded, opts)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fatal("encode report: %v", err)
		}
		return
	}
	fmt.Print(recon.HumanSummary(report))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
