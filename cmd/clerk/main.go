package main

import (
	"os"

	"github.com/Cemililkim/Clerk/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
