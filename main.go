package main

import (
	"os"

	"github.com/scan-io-git/secret-hook/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
