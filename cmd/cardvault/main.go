// Command cardvault runs the card service and offers offline helpers for
// generating and checking card numbers.
package main

import (
	"os"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already printed the error.
		os.Exit(1)
	}
}
