// isodist - Theoretical isotopic distribution tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/isodist/cmd/isodist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
