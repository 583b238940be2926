package main

import (
	"github.com/BotCoder254/URLBriefr/cmd"

	// Subcommands register themselves against the root command.
	_ "github.com/BotCoder254/URLBriefr/cmd/cli"
	_ "github.com/BotCoder254/URLBriefr/cmd/server"
)

func main() {
	cmd.Execute()
}
