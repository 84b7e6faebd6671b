// The main package for the pipeline executable.
package main

import (
	"github.com/BenjaminSRussell/Scrapy-sub002/cmd"
)

func main() {
	cmd.Execute()
}
