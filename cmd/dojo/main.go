// Command dojo runs the academy's belt progression service.
//
//	dojo serve              HTTP API, eligibility scan and event fan-out
//	dojo migrate up|down|status
//	dojo check              evaluate one student from flags, no database
//	dojo hash-key           print the bcrypt hash of an operator API key
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
