// Command procflow compiles, stores and runs process-automation graphs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/procflow/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "procflow:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
