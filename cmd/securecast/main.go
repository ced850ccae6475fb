package main

import (
	"os"

	"securecast/cmd/securecast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
