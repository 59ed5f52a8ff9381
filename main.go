// The main package for the locbot executable.
package main

import (
	"github.com/JakeFAU/loc-announcer/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
