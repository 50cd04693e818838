package main

import (
	"os"

	"github.com/Tanteli/imx-starknet/cmd/imxpkg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
