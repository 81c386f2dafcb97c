package main

import (
	"os"

	"github.com/wader/gifcat/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
