package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/opcount/internal/zoo"
	"github.com/samcharles93/opcount/pkg/profile"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls", "models"},
		Usage:   "List built-in models and module kinds with counters",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			writeList(os.Stdout)
			return nil
		},
	}
}

func writeList(w io.Writer) {
	fmt.Fprintln(w, "Models:")
	fmt.Fprintln(w)
	for _, e := range zoo.Entries() {
		fmt.Fprintf(w, "  %-14s %-18s %s\n", e.Name, e.Input.String(), e.Description)
	}

	registry := profile.DefaultRegistry()
	var counted, free []string
	for _, k := range registry.Kinds() {
		if registry[k] == nil {
			free = append(free, string(k))
		} else {
			counted = append(counted, string(k))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Counted kinds: %s\n", strings.Join(counted, ", "))
	fmt.Fprintf(w, "Free kinds:    %s\n", strings.Join(free, ", "))
}
