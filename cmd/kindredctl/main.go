package main

import (
	"os"

	"github.com/Harshitk-cp/kindred/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
