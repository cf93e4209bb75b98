package main

import (
	"io"
	"os"

	"github.com/doridoridoriand/holdwatch/internal/cli"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return cli.Execute(version, args, stdout, stderr)
}
