// Package main provides the entry point for the remotefs CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/remotefs/cmd/remotefs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
