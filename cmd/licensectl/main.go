// Package main is the entry point for the licensectl binary.
package main

import (
	"os"

	"github.com/keydesk/keydesk/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
