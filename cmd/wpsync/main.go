package main

import (
	"os"

	"wordpress-sync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
