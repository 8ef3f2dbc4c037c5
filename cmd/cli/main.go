// Command cli is the operator tool for the capital ledger: batch
// imports, document extraction, envelope balances and reclassification.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	g := &globals{}
	flag.BoolVar(&g.memory, "memory", false, "Use a seeded in-memory store instead of MongoDB")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&importCmd{g: g}, "ledger")
	commander.Register(&showCmd{g: g}, "ledger")
	commander.Register(&classifyCmd{g: g}, "ledger")
	commander.Register(&envelopesCmd{g: g}, "envelopes")
	commander.Register(&extractCmd{g: g}, "documents")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
