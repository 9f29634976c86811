package main

import (
	"os"

	"github.com/ard14n/AJETE/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
