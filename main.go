package main

import (
	"os"

	"github.com/transitops/darp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
