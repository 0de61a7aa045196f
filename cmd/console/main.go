package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/loop-engine/pkg/engine"
)

func main() {
	manifest := flag.String("manifest", getEnv("MANIFEST_PATH", "data/game.yaml"), "game manifest")
	name := flag.String("name", "", "player name")
	logPath := flag.String("log", "", "write engine logs to this file")
	flag.Parse()

	// The terminal belongs to the UI; logs go to a file or nowhere.
	logger := slog.New(slog.DiscardHandler)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	eng, report, err := engine.Load(*manifest, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *manifest, err)
		os.Exit(1)
	}
	if n := report.Problems(); n > 0 {
		fmt.Fprintf(os.Stderr, "Loaded with %d problems; run validate for details.\n", n)
	}

	p := tea.NewProgram(NewConsoleUI(eng, eng.NewSession(*name)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
