package main

import (
	"os"

	"github.com/calyx-health/deid/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
