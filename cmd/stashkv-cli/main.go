// Package main provides the entry point for stashkv-cli.
//
// stashkv-cli is the command-line client for stashkv-server.
package main

import (
	"fmt"
	"os"

	"github.com/stashkv/stashkv/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
