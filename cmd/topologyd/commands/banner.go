package commands

import (
	"fmt"

	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/version"
)

// printStartupBanner prints the startup summary for the serve command.
func printStartupBanner(verbosity int, addr string, mapCount int) {
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s┌─ topologyd ─────────────────────────────────────────┐%s\n", cyan, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", cyan, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", cyan, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", cyan, reset, logger.LevelName(verbosity))
	fmt.Printf("%s│%s Admin:     http://%s\n", cyan, reset, addr)
	fmt.Printf("%s│%s Maps:      %d configured\n", cyan, reset, mapCount)
	fmt.Printf("%s└───────────────────────────────────────────────────────┘%s\n", cyan, reset)

	fmt.Printf("\n%s%sSynchronizing map topology%s\n", yellow, bold, reset)
	fmt.Printf("%sPress Ctrl+C to stop%s\n\n", green, reset)
}
