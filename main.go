// plz compiles PL/0 source code into p-machine code and runs it.
package main

import (
	"os"

	"github.com/dr8co/plz/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
