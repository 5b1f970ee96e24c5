// Package main provides the entry point for the smre CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/smre/cmd/smre/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
