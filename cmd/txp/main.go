// Command txp applies CSV transaction feeds and prints final client balances.
package main

import (
	"fmt"
	"os"

	"github.com/txp-network/txp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "txp:", err)
		os.Exit(1)
	}
}
