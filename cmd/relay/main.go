package main

import (
	"context"
	"fmt"
	"os"

	commands "github.com/lewisedginton/whatsapp_relay/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	app := commands.NewApp(version)

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
