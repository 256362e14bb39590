package main

import (
	"context"
	"os"

	"github.com/vsinha/picktrack/pkg/interfaces/cli/commands"
)

func main() {
	os.Exit(commands.Main(context.Background(), os.Args[1:]))
}
