package main

import (
	"os"

	"github.com/radieske/noloss-ledger-poc/internal/ledgerctl"
)

func main() {
	if err := ledgerctl.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
