package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/cli/render"
	"github.com/justapithecus/gridcap/cli/tui"
)

// StatsCommand returns the stats command.
// Stats aggregates every stored page manifest.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Aggregate tile outcomes across all stored pages",
		Flags:  readCommandFlags(),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	stats, err := rd.StatsPages(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsPages, stats)
	}
	return r.Render(stats)
}
