// Package main provides the entry point for the retrieval CLI.
package main

import (
	"os"

	"github.com/secondbrain/retrieval/cmd/retrieval/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
