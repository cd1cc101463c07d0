package main

import "github.com/petrelhq/petrel/internal/cmd"

// Set at build time via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)
	cmd.Execute()
}
