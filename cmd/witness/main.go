package main

import (
	"os"

	"github.com/gnoswap-labs/witness/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
