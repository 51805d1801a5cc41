// Package main is the entry point for the recon CLI tool.
package main

import (
	"os"

	"github.com/rusty-ferris-club/recon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
