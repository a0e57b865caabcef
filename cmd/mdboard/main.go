package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/mdboard/internal"
	"github.com/valter-silva-au/mdboard/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	configDir := app.ResolveConfigDir()

	a, err := app.NewApp(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing mdboard: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute()
	_ = a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
