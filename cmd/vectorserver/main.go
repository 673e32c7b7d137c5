package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Serve     ServeCommand     `cmd:"serve" help:"Start the vector server."`
	Provision ProvisionCommand `cmd:"provision" help:"Download models into local directories."`
	Embed     EmbedCommand     `cmd:"embed" help:"Embed and store a piece of text."`
	Search    SearchCommand    `cmd:"search" help:"Find stored text similar to a piece of text."`
	Insights  InsightsCommand  `cmd:"insights" help:"Extract key insights from a piece of text."`
	Import    ImportCommand    `cmd:"import" help:"Import Pocketbase records into a vector server."`
	Console   ConsoleCommand   `cmd:"console" help:"Interactively search a vector server."`
	Version   VersionCommand   `cmd:"version" help:"Print the version of the vector server."`
}

func main() {
	var cli CLI
	ctx := context.Background()
	kctx := kong.Parse(&cli, kong.UsageOnError(), kong.BindTo(ctx, (*context.Context)(nil)))
	if err := kctx.Run(); err != nil {
		log := getLogger("error")
		log.Error("error", slog.Any("error", err))
		os.Exit(1)
	}
}

func getLogger(level string) *slog.Logger {
	ll := slog.LevelInfo
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "info":
		ll = slog.LevelInfo
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ll,
	}))
}
