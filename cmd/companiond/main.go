// Package main provides the companiond voice companion daemon.
//
// Usage:
//
//	companiond [flags] [command]
//
// Commands:
//
//	serve    - Run the daemon (default when no command is given)
//	tracks   - Validate and list the ambience catalog
//	version  - Print build information
package main

import (
	"fmt"
	"os"

	"github.com/aveline-ai/companiond/cmd/companiond/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
