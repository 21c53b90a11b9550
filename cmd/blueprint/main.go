package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/blueprint-api/internal/pkg/config"
	"github.com/tjfontaine/blueprint-api/internal/telemetry"
	"github.com/tjfontaine/blueprint-api/pkg/blueprint"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "blueprint",
		Usage: "Serve generic create and update actions for configured models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   config.DefaultPath,
				Sources: cli.EnvVars("BLUEPRINT_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(logger),
			modelsCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serveCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Export spans to stderr",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Grace period for in-flight requests",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var spans io.Writer
			if cmd.Bool("trace") {
				spans = os.Stderr
			}
			shutdown, err := telemetry.InitTracer("blueprint-api", spans, logger)
			if err != nil {
				return fmt.Errorf("initialize tracer: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
				}
			}()

			app, err := blueprint.New(
				blueprint.WithLogger(logger),
				blueprint.WithFileConfig(cmd.String("config")),
			)
			if err != nil {
				return fmt.Errorf("create app: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start app: %w", err)
			}

			<-ctx.Done()
			logger.Info("shutdown signal received, stopping app")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Duration("shutdown-timeout"))
			defer cancel()
			return app.Shutdown(shutdownCtx)
		},
	}
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "Validate the configuration and list model routes",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			for _, m := range cfg.Models {
				var assocs []string
				for _, a := range m.Associations {
					assocs = append(assocs, fmt.Sprintf("%s(%s %s)", a.Name, a.Kind, a.Target))
				}
				fmt.Fprintf(os.Stdout, "%-16s POST /%s  PUT|PATCH /%s/{id}  %s\n",
					m.Name, m.Plural, m.Plural, strings.Join(assocs, " "))
			}
			return nil
		},
	}
}
