package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sagenote/internal"
	pkgconfig "github.com/starford/sagenote/pkg/config"
)

type runner func(ctx context.Context, opts ...internal.Option) error

// logOutput picks where a front end writes its logs. A nil writer keeps the
// default of stdout.
type logOutput func() (io.Writer, func(), error)

func toStdout() (io.Writer, func(), error) { return nil, func() {}, nil }

func toStderr() (io.Writer, func(), error) { return os.Stderr, func() {}, nil }

// toFile keeps logs off the terminal while the TUI owns it.
func toFile() (io.Writer, func(), error) {
	f, err := os.OpenFile(filepath.Join(os.TempDir(), "sagenote-tui.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// action loads the config and hands it to run.
func action(run runner, logs logOutput) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}
		out, closeLog, err := logs()
		if err != nil {
			return err
		}
		defer closeLog()
		if out != nil {
			opts = append(opts, internal.WithLogOutput(out))
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "sagenote",
		Usage:  "Notes with checklists, drawings and voice recordings, stored in SQLite",
		Action: action(internal.Run, toStdout),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API, event stream and metrics",
				Action: action(internal.Run, toStdout),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: action(internal.RunMCP, toStderr),
			},
			{
				Name:   "tui",
				Usage:  "Browse and edit notes in the terminal",
				Action: action(internal.RunTUI, toFile),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
