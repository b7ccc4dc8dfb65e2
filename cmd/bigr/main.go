// cmd/bigr/main.go
package main

import (
	"fmt"
	"os"

	"github.com/bigrlabs/bigr-discovery/cmd/bigr/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
