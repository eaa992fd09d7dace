package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"

	"twexport/internal/app"
)

//go:embed frontend/*
var frontendFiles embed.FS

func main() {
	var opts []app.Option
	if frontendFS, err := fs.Sub(frontendFiles, "frontend"); err == nil {
		opts = append(opts, app.WithFrontend(frontendFS))
	} else {
		slog.Warn("frontend embedding failed", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(opts...)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
