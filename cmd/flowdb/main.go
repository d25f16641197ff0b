// Command flowdb stores token values in SQLite through journaled flows.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/flowdb/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
