package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var (
	log = logging.Logger("msig_coordinator")
)

func main() {
	if err := logging.SetLogLevel("*", "info"); err != nil {
		log.Fatal(err)
	}
	app := &cli.App{
		Name:    "msig_coordinator",
		Usage:   "multisig registration and proposal coordination service",
		Version: "0.1.0",
		Flags:   []cli.Flag{},
		Commands: []*cli.Command{
			cmdInitDb,
			cmdServer,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
