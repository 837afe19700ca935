package main

import (
	"fmt"
	"os"

	"github.com/pypeclub/OpenPype/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pype-settings: %v\n", err)
		os.Exit(1)
	}
}
