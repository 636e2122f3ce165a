package main

import (
	"os"

	"github.com/profilescout/profilescout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
