// The main package for the jobcrawler executable.
package main

import (
	"github.com/JakeFAU/jobsearch-crawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
