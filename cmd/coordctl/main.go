// Command coordctl is the admin CLI for a running coordinatord,
// adapted from _examples/wilke-GoWe/cmd/cli/main.go's thin
// Execute()-and-exit wrapper.
package main

import (
	"fmt"
	"os"

	"github.com/me/coordinate/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
