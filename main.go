package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/neo-ledgerclient/cmd"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:     "neo-ledger",
		Usage:    "NEO N3 Ledger signing client",
		Flags:    cmd.GlobalFlags(),
		Commands: cmd.Commands(),
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
