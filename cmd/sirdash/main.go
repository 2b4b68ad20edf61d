// Command sirdash is the dashboard command line.
package main

import (
	"os"

	"github.com/coprede/sir-dashboard/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
