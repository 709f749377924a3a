// Package main is the entry point for the wara9a CLI.
package main

import (
	"fmt"
	"os"

	"github.com/elhajjaji/wara9a/cmd"
	"github.com/elhajjaji/wara9a/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
