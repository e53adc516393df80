// Command ocls is an OpenCL C Language Server.
package main

import (
	"os"

	"github.com/ocls-project/ocls/internal/cliapp"
)

func main() {
	if err := cliapp.Execute(); err != nil {
		os.Exit(1)
	}
}
