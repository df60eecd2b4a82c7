// Package cmd provides CLI commands for the gridcap binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	gridconfig "github.com/justapithecus/gridcap/cli/config"
	"github.com/justapithecus/gridcap/lode"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// StorageReadFlags returns the flags that locate persisted manifests.
// Defaults match `run`, so both commands see the same storage.
func StorageReadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to gridcap.yaml (storage section is used)",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs or s3",
			Value: lode.BackendFS,
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
			Value: gridconfig.DefaultStoragePath,
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for S3 backend",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
	}
}

// readCommandFlags combines output and storage flags.
func readCommandFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(ReadOnlyFlags(), StorageReadFlags()...)
	return append(flags, extra...)
}
