package main

import (
	"os"

	"github.com/corporal-cli/corporal/internal/shell"
)

var version = "dev"

func main() {
	shell.Version = version
	os.Exit(shell.Main(os.Args[1:]))
}
