// Command messagecore runs the messages service.
package main

import (
	"fmt"
	"os"

	"messagecore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
