package main

import (
	"fmt"
	"os"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
