package main

import (
	"log"

	"github.com/cancelikay/santral/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		log.Fatalf("santral: %v", err)
	}
}
