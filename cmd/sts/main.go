// Package main is the entry point for the sts command
package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-sts/cmd/sts/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
