// The main package for the xllinks executable.
package main

import (
	"github.com/JakeFAU/xllinks/cmd"
)

// main defers all execution to the Cobra command.
func main() {
	cmd.Execute()
}
