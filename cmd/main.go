package main

import (
	"context"
	"os"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/cli"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// --- Main ---

func main() {
	ctx := context.Background()
	ctx = context.WithValue(ctx, model.ContextAppName, "Perfect Menu Print Bridge")
	ctx = context.WithValue(ctx, model.ContextAppVersion, cli.Version)
	ctx = context.WithValue(ctx, model.ContextAppAuthor, "Riboost Studio")
	ctx = context.WithValue(ctx, model.ContextConfigFile, cli.DefaultConfigFile)

	if err := cli.BuildCLI().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
