package main

import (
	"fmt"
	"os"

	"github.com/platinummonkey/anymod/pkg/cli"

	// Compiled-in plugin modules
	_ "github.com/platinummonkey/anymod/examples/greeter"
)

func main() {
	// Create root command
	rootCmd := cli.NewRootCommand()

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
