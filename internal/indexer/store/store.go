// Package store persists index snapshots as a group of five artifacts
// (postings, df, idf, document norms, meta) sharing one prefix. Every
// backend publishes a group all-or-nothing and refuses to load a group
// whose members do not belong together.
package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/postgres"
)

// Store saves and loads snapshots by prefix.
type Store interface {
	Save(ctx context.Context, prefix string, snap *index.Snapshot) error
	Load(ctx context.Context, prefix string) (*index.Snapshot, error)
	Close() error
}

// Open returns the backend named by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		return NewFileStore(), nil
	case "bolt":
		return OpenBoltStore(cfg.Storage.BoltPath)
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting artifact database: %w", err)
		}
		s, err := NewPostgresStore(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("backend %q: %w", cfg.Storage.Backend, apperrors.ErrUnsupportedBackend)
	}
}
