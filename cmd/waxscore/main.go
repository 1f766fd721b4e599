package main

import (
	"os"

	"waxscore/cmd/waxscore/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
