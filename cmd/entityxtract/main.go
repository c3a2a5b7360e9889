// Command entityxtract extracts structured objects from documents using LLMs.
package main

import (
	"os"

	"github.com/entityxtract/entityxtract/cmd/entityxtract/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
