package main

import (
	"os"

	"nyx/cmd/nyx/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
