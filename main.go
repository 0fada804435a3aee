package main

import (
	"runtime"

	"bizadmin/cmd"
)

// Set with -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime, GitCommit, runtime.Version())
	cmd.Execute()
}
