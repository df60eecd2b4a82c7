package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	gridconfig "github.com/justapithecus/gridcap/cli/config"
	"github.com/justapithecus/gridcap/cli/reader"
	"github.com/justapithecus/gridcap/lode"
)

// resolveStorage merges the config file storage section with storage flags.
func resolveStorage(c *cli.Context) (lode.StoreConfig, lode.Layout, error) {
	cfg := gridconfig.Default()
	if path := c.String("config"); path != "" {
		loaded, err := gridconfig.Load(path)
		if err != nil {
			return lode.StoreConfig{}, lode.Layout{}, err
		}
		cfg = loaded
	}

	sc := lode.StoreConfig{
		Backend:      resolveString(c, "storage-backend", cfg.Storage.Backend),
		Path:         resolveString(c, "storage-path", cfg.Storage.Path),
		Region:       resolveString(c, "storage-region", cfg.Storage.Region),
		Endpoint:     resolveString(c, "storage-endpoint", cfg.Storage.Endpoint),
		UsePathStyle: resolveBool(c, "storage-s3-path-style", cfg.Storage.S3PathStyle),
	}
	return sc, buildLayout(cfg.Storage), nil
}

// openReader opens storage read-only. Unlike `run`, no directories are
// created.
func openReader(c *cli.Context) (*reader.Reader, error) {
	sc, layout, err := resolveStorage(c)
	if err != nil {
		return nil, err
	}

	factory, err := lode.NewStoreFactory(sc)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	store, err := factory()
	if err != nil {
		return nil, fmt.Errorf("storage: %w", lode.WrapInitError(err, sc.Path))
	}
	return reader.New(lode.NewPersister(store, layout, nil)), nil
}
