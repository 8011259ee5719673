package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boltdb/bolt"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
)

// BoltStore keeps one bucket per prefix holding the five artifacts. A save
// replaces the bucket inside a single read-write transaction.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database %s: %w", path, err)
	}
	return &BoltStore{
		db:     db,
		logger: logger.WithComponent("bolt-store").With("path", path),
	}, nil
}

func (s *BoltStore) Save(ctx context.Context, prefix string, snap *index.Snapshot) error {
	artifacts, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(prefix)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("dropping previous artifacts: %w", err)
		}
		b, err := tx.CreateBucket([]byte(prefix))
		if err != nil {
			return fmt.Errorf("creating artifact bucket: %w", err)
		}
		for _, name := range append(append([]string{}, dataArtifacts...), ArtifactMeta) {
			if err := b.Put([]byte(name), artifacts[name]); err != nil {
				return fmt.Errorf("writing %s artifact: %w", name, err)
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

func (s *BoltStore) Load(ctx context.Context, prefix string) (*index.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	artifacts := make(Artifacts, len(dataArtifacts)+1)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return fmt.Errorf("bucket %q: %w", prefix, apperrors.ErrNotFound)
		}
		return b.ForEach(func(k, v []byte) error {
			// Values are only valid for the life of the transaction.
			artifacts[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", prefix, err)
	}
	snap, err := Decode(artifacts)
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", prefix, err)
	}
	s.logger.Info("index artifacts loaded", "prefix", prefix, "terms", snap.NumTerms(), "docs", snap.N())
	return snap, nil
}

// PutArtifact overwrites a single artifact outside of Save. It exists for
// repair tooling and tests that need to corrupt a stored group.
func (s *BoltStore) PutArtifact(prefix, name string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(prefix))
		if err != nil {
			return err
		}
		return b.Put([]byte(name), data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
