package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nju-xjk/Photo-Watermark-1/internal/batch"
	"github.com/nju-xjk/Photo-Watermark-1/internal/config"
	"github.com/nju-xjk/Photo-Watermark-1/internal/watermark"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logw, closeLog := logWriter(cfg.LogFile)
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logw, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	if cfg.InputDir == "" {
		if err := config.Prompt(cfg, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	info, err := os.Stat(cfg.InputDir)
	if err != nil {
		slog.Error("input directory not accessible", "dir", cfg.InputDir, "error", err)
		return 2
	}
	if !info.IsDir() {
		slog.Error("input path is not a directory", "path", cfg.InputDir)
		return 2
	}

	// Style and font are validated before any image is touched; a bad
	// configuration aborts with nothing partially processed.
	style, err := watermark.ParseStyle(cfg.FontSize, cfg.Color, cfg.Position, cfg.Opacity)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 2
	}
	renderer, err := watermark.NewRenderer(style, cfg.FontPath)
	if err != nil {
		slog.Error("font setup failed", "error", err)
		return 2
	}

	outputDir := cfg.ResolvedOutputDir()
	slog.Info("configuration",
		"input", cfg.InputDir,
		"output", outputDir,
		"font_size", cfg.FontSize,
		"color", cfg.Color,
		"position", cfg.Position,
		"opacity", cfg.Opacity,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &batch.Runner{Renderer: renderer, OutputDir: outputDir}
	res, err := runner.Run(ctx, cfg.InputDir)
	if err != nil {
		slog.Error("batch aborted", "error", err)
		return 1
	}

	fmt.Printf("\nDone: %d succeeded, %d failed\n", res.Succeeded, res.Failed)
	fmt.Printf("Output directory: %s\n", outputDir)
	for _, o := range res.Outcomes {
		if !o.Succeeded() {
			fmt.Printf("  failed: %s (%v)\n", o.Path, o.Err)
		}
	}
	if res.Failed > 0 {
		return 1
	}
	return 0
}

// logWriter tees log output to stdout and the configured log file. The log
// file is optional: if it cannot be opened, logging continues on stdout
// alone.
func logWriter(path string) (io.Writer, func()) {
	if path == "" {
		return os.Stdout, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", path, err)
		return os.Stdout, func() {}
	}
	return io.MultiWriter(os.Stdout, f), func() { f.Close() }
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
