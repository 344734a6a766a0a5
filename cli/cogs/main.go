// Package main is the cogs command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/skeletex/cogs/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
