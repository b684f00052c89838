package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&snapshotCmd{},
	&statusCmd{},
	&portfolioCmd{},
	&analyticsCmd{},
	&txCmd{},
}

// completion mirrors the flags of every command for shell completion.
var completion = &complete.Command{
	Sub: map[string]*complete.Command{
		"snapshot": {Flags: map[string]complete.Predictor{
			"d": predict.Nothing,
		}},
		"status": {Flags: map[string]complete.Predictor{
			"d": predict.Nothing,
		}},
		"portfolio": {Flags: map[string]complete.Predictor{
			"u": predict.Nothing,
		}},
		"analytics": {Flags: map[string]complete.Predictor{
			"u": predict.Nothing,
			"p": predict.Set{"day", "week", "month", "year"},
		}},
		"tx": {Flags: map[string]complete.Predictor{
			"u":   predict.Nothing,
			"n":   predict.Nothing,
			"csv": predict.Dirs("*"),
		}},
		"migrate": {},
	},
}

func main() {
	// Exits when the shell asks for completions.
	completion.Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
