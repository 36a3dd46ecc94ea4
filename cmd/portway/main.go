package main

import (
	"fmt"
	"os"

	"github.com/melosso/portway/cmd/portway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
