// Command quotesctl is the operator CLI for the quote pipeline: migrations,
// expiry sweeps, admin reopen and offline price checks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
