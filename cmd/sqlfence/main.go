// Package main is the sqlfence command.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlfence/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
