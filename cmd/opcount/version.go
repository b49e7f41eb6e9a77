package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/opcount/internal/version"
	"github.com/samcharles93/opcount/pkg/profile"
)

func versionCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "version",
		Usage: "Print build information and the number of built-in counters",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as a JSON object",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return writeVersion(os.Stdout, version.Resolve(), asJSON)
		},
	}
}

type versionReport struct {
	version.Info
	Counters int `json:"counters"`
}

func writeVersion(w io.Writer, info version.Info, asJSON bool) error {
	rep := versionReport{Info: info, Counters: len(profile.DefaultRegistry())}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "opcount %s\n", rep.Version)
	if rep.Commit != "" {
		fmt.Fprintf(w, "  commit:   %s\n", rep.Commit)
	}
	if rep.BuildTime != "" {
		fmt.Fprintf(w, "  built:    %s\n", rep.BuildTime)
	}
	fmt.Fprintf(w, "  go:       %s\n", rep.GoVersion)
	fmt.Fprintf(w, "  counters: %d kinds\n", rep.Counters)
	return nil
}
