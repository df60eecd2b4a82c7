// Package main provides gridcap-mockserver, a stand-in renderer for dry runs.
//
// It speaks the renderer side of the line protocol on stdin/stdout: each
// "page:<n>" request is answered with one item_slot line per catalog entry
// on that page, followed by "__next__ page:<n>". Pages past the end of the
// catalog complete with no entries, which ends a continuous run.
//
// Usage:
//
//	gridcap-mockserver serve [--catalog ids.yaml] [--page-size 54]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/cli/config"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/types"
)

func main() {
	app := &cli.App{
		Name:    "gridcap-mockserver",
		Usage:   "Mock renderer answering page requests from a catalog file",
		Version: types.Version,
		Commands: []*cli.Command{
			serveCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Answer page requests on stdin until stop or EOF",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "YAML list of namespaced ids (default: built-in sample)",
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Entries per page (rows x cols of the grid)",
				Value: config.DefaultRows * config.DefaultCols,
			},
			&cli.StringFlag{
				Name:  "line-prefix",
				Usage: "Text printed before every protocol line, like a server log header",
				Value: "[Scripting] ",
			},
			&cli.StringFlag{
				Name:  "banner",
				Usage: "Line printed once at startup",
				Value: defaultBanner,
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause before answering each request",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Diagnostics level on stderr (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	catalog := defaultCatalog
	if path := c.String("catalog"); path != "" {
		loaded, err := loadCatalog(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		catalog = loaded
	}

	logger := log.NewLoggerWithWriter(
		log.RunContext{RunID: "mockserver"},
		os.Stderr,
		log.ParseLevel(c.String("log-level")),
	).Sugar()

	srv, err := newServer(serverConfig{
		Catalog:    catalog,
		PageSize:   c.Int("page-size"),
		LinePrefix: c.String("line-prefix"),
		Banner:     c.String("banner"),
		Delay:      c.Duration("delay"),
		Log:        logger,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := srv.serve(os.Stdin, os.Stdout); err != nil {
		return cli.Exit(fmt.Sprintf("serve: %v", err), 1)
	}
	return nil
}
