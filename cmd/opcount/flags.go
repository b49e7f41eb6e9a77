package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/opcount/internal/logger"
)

var (
	logLevel  string
	logFormat string
	noColor   bool
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "disable coloured log output",
			Destination: &noColor,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// modelFlags select what to profile: zoo models, architecture files or both.
func modelFlags(models, specs *[]string, input *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "built-in model name (repeatable, see `opcount list`)",
			Destination: models,
		},
		&cli.StringSliceFlag{
			Name:        "spec",
			Aliases:     []string{"s"},
			Usage:       "architecture file in YAML or JSON (repeatable)",
			Destination: specs,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "input shape such as 1,3,224,224 (overrides the model default)",
			Destination: input,
		},
	}
}

// setupLogging builds the logger described by the logging flags and the
// config file, and stores it in the context for every subcommand.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	applyLogConfig(cmd, LoadConfig())
	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Open(os.Stderr, logger.Config{
		Level:   level,
		Format:  logger.Format(logFormat),
		Source:  debug,
		NoColor: noColor || os.Getenv("NO_COLOR") != "",
	})
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return logger.WithContext(ctx, log), nil
}
