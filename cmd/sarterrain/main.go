package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/sarterrain/internal/version"
)

var showVersion = flag.Bool("version", false, "Print version information and exit")

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "synth":
		err = runSynth(args)
	case "flatten":
		err = runFlatten(ctx, args)
	case "georef":
		err = runGeoref(ctx, args)
	case "report":
		err = runReport(args)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		stop()
		log.Printf("%s: %v", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sarterrain - SAR terrain flattening and geo-reference update

Usage: sarterrain <command> [options]

Commands:
  synth      Write a synthetic product (metadata, Beta0 band, Esri ASCII DEM)
  flatten    Terrain-flatten the backscatter bands of a product
  georef     Compute per-pixel latitude and longitude bands from the DEM
  report     Render the HTML report of a recorded run
  version    Show version information
  help       Show this help message

Common Flags:
  -product <file>   Product metadata JSON
  -config <file>    Tuning config JSON (defaults apply when omitted)
  -dem <file>       Esri ASCII DEM, overrides the configured DEM
  -out <dir>        Output product directory
  -db <file>        SQLite run database for per-tile diagnostics

Examples:
  sarterrain synth -out scene -terrain hill -relief 1500
  sarterrain flatten -product scene/metadata.json -dem scene/dem.asc -out flat -db runs.db -plots flat/plots
  sarterrain georef -product scene/metadata.json -dem scene/dem.asc -out geo -db runs.db
  sarterrain report -db runs.db -out report.html`)
}
