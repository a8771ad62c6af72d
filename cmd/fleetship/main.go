package main

import (
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitUsageError   = 1
	ExitConfigError  = 2
	ExitDockerError  = 3
	ExitAPIError     = 4
	ExitDeployError  = 5
	ExitHistoryError = 6
)

const usage = `fleetship - deploy compose projects to device fleets

Usage:
  fleetship deploy <fleet> [image] [flags]   create a release on a fleet
  fleetship history [fleet] [flags]          list past deploys
  fleetship version                          print version and exit

Run 'fleetship <command> -h' for command flags.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return ExitUsageError
	}

	switch args[0] {
	case "deploy":
		return runDeploy(args[1:])
	case "history":
		return runHistory(args[1:])
	case "version", "-version", "--version":
		fmt.Printf("fleetship %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	case "help", "-h", "--help":
		fmt.Print(usage)
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return ExitUsageError
	}
}
