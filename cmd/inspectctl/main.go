// Command inspectctl operates a fieldsync agent's local state.
package main

import (
	"fmt"
	"os"

	"github.com/fieldsync/inspector/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
