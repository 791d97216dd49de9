package main

import (
	"os"

	"twod-ledger-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.Options{}).Execute(); err != nil {
		os.Exit(1)
	}
}
