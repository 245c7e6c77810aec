// Package main provides the specql command.
package main

import (
	"os"

	"github.com/fraiseql/specql-sub006/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
