// Package main is the navsim command itself.
package main

import (
	"log"
	"os"

	navcli "github.com/16tons/emergency5-sdk-sub029/cli"
)

func main() {
	app := navcli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
