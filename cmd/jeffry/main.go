package main

import (
	"os"

	"github.com/jeffryhq/jeffry/cmd/jeffry/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
