// Command tokenbench loads extracted-features token counts into a table and
// reports insert throughput.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/tokenbench/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
