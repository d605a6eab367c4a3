package main

import (
	"os"

	"github.com/splitpick/splitpick/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
