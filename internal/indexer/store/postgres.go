package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/postgres"
)

const artifactSchema = `CREATE TABLE IF NOT EXISTS index_artifacts (
	prefix     TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	payload    BYTEA       NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (prefix, name)
)`

// PostgresStore keeps artifacts as rows of index_artifacts. A save deletes
// and re-inserts the whole group in one transaction.
type PostgresStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore takes ownership of client and ensures the artifact table
// exists.
func NewPostgresStore(ctx context.Context, client *postgres.Client) (*PostgresStore, error) {
	if _, err := client.DB.ExecContext(ctx, artifactSchema); err != nil {
		return nil, fmt.Errorf("creating index_artifacts table: %w", err)
	}
	return &PostgresStore{
		client: client,
		logger: logger.WithComponent("postgres-store"),
	}, nil
}

func (s *PostgresStore) Save(ctx context.Context, prefix string, snap *index.Snapshot) error {
	artifacts, err := Encode(snap)
	if err != nil {
		return err
	}
	err = s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_artifacts WHERE prefix = $1`, prefix); err != nil {
			return fmt.Errorf("deleting previous artifacts: %w", err)
		}
		for _, name := range append(append([]string{}, dataArtifacts...), ArtifactMeta) {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO index_artifacts (prefix, name, payload) VALUES ($1, $2, $3)`,
				prefix, name, artifacts[name],
			)
			if err != nil {
				return fmt.Errorf("inserting %s artifact: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving index %s: %w", prefix, err)
	}
	s.logger.Info("index artifacts saved", "prefix", prefix, "terms", snap.NumTerms(), "docs", snap.N())
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, prefix string) (*index.Snapshot, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT name, payload FROM index_artifacts WHERE prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts for %s: %w", prefix, err)
	}
	defer rows.Close()

	artifacts := make(Artifacts, len(dataArtifacts)+1)
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		artifacts[name] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading artifact rows: %w", err)
	}
	snap, err := Decode(artifacts)
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", prefix, err)
	}
	s.logger.Info("index artifacts loaded", "prefix", prefix, "terms", snap.NumTerms(), "docs", snap.N())
	return snap, nil
}

func (s *PostgresStore) Close() error {
	return s.client.Close()
}
