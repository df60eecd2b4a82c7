package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/cli/render"
	"github.com/justapithecus/gridcap/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect returns the full manifest of a single page.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect one page manifest (tiles, names, outcomes)",
		Flags: readCommandFlags(
			&cli.IntFlag{
				Name:     "page",
				Usage:    "Page number",
				Required: true,
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	view, err := rd.InspectPage(c.Context, c.Int("page"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectPage, view)
	}

	// Tables flatten nested slices, so the tile list is rendered as a
	// second table.
	if r.Format() == render.FormatTable {
		if err := r.Render(view); err != nil {
			return err
		}
		return r.Render(view.Tiles)
	}
	return r.Render(view)
}
