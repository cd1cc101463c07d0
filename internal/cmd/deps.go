package cmd

import (
	"context"
	"fmt"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/pkg/statedoc"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

// stateBackend opens the configured state document backend. The returned
// closer is a no-op for backends without connections to release.
func stateBackend(ctx context.Context, cfg *config.Config) (statedoc.Backend, func(), error) {
	switch cfg.StateDoc.Backend {
	case "", "sqlite":
		store, err := statedoc.OpenSQLite(ctx, statedoc.Config{
			Path:      cfg.StateDoc.Path,
			URL:       cfg.StateDoc.URL,
			AuthToken: cfg.StateDoc.AuthToken,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "s3":
		store, err := statedoc.NewS3Store(ctx, statedoc.S3Config{
			Bucket:         cfg.StateDoc.S3.Bucket,
			Prefix:         cfg.StateDoc.S3.Prefix,
			Region:         cfg.StateDoc.S3.Region,
			Endpoint:       cfg.StateDoc.S3.Endpoint,
			Profile:        cfg.StateDoc.S3.Profile,
			ForcePathStyle: cfg.StateDoc.S3.ForcePathStyle,
			DiscoverRegion: cfg.StateDoc.S3.DiscoverRegion,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported state store backend: %s", cfg.StateDoc.Backend)
	}
}

func taskRegistry(cfg *config.Config) *taskregistry.Registry {
	return taskregistry.NewRegistry(cfg.Registry.Root, cfg.Registry.Node)
}
