package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/cli/render"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ListCommand returns the list command.
// List returns one thin row per stored page manifest.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List page manifests in storage",
		Flags: readCommandFlags(
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of pages to return (0 = no limit)",
				Value: 0,
			},
		),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	items, err := rd.ListPages(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	limit := c.Int("limit")
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(items) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(items))
	}

	return r.Render(items)
}
