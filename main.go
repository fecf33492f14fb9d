// Package main is the entry point for the port-watcher CLI.
package main

import (
	"fmt"

	"github.com/palomafofana/port-watcher/cmd"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.SetVersion(fmt.Sprintf("%s (commit: %s)", version, commit))
	cmd.Execute()
}
