package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/beamdec/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "beamdec:", err)
		os.Exit(1)
	}
}
