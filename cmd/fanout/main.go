// Command fanout compiles host declarations and runs fan-out scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fanout/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
