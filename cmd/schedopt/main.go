package main

import (
	"os"

	"github.com/mesplatform/schedopt/cmd/schedopt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
