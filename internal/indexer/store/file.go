package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
)

// FileStore writes each artifact to <prefix>_<name>.json.
type FileStore struct {
	logger *slog.Logger
}

func NewFileStore() *FileStore {
	return &FileStore{logger: logger.WithComponent("file-store")}
}

// ArtifactPath returns the file backing one artifact of a prefix.
func ArtifactPath(prefix, name string) string {
	return prefix + "_" + name + ".json"
}

// Save writes every artifact to a .tmp sibling, syncs it, then renames the
// data artifacts into place and the meta artifact last. A crash part-way
// leaves either the previous meta, whose checksums no longer match, or no
// meta at all; both fail to load.
func (s *FileStore) Save(ctx context.Context, prefix string, snap *index.Snapshot) error {
	artifacts, err := Encode(snap)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(prefix); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}

	order := append(append([]string{}, dataArtifacts...), ArtifactMeta)
	tmpPaths := make([]string, 0, len(order))
	cleanup := func() {
		for _, p := range tmpPaths {
			os.Remove(p)
		}
	}
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmp := ArtifactPath(prefix, name) + ".tmp"
		tmpPaths = append(tmpPaths, tmp)
		if err := writeSynced(tmp, artifacts[name]); err != nil {
			cleanup()
			return fmt.Errorf("writing %s artifact: %w", name, err)
		}
	}
	for i, name := range order {
		if err := os.Rename(tmpPaths[i], ArtifactPath(prefix, name)); err != nil {
			cleanup()
			return fmt.Errorf("publishing %s artifact: %w", name, err)
		}
	}
	s.logger.Info("index artifacts saved",
		"prefix", prefix,
		"terms", snap.NumTerms(),
		"docs", snap.N(),
	)
	return nil
}

func (s *FileStore) Load(ctx context.Context, prefix string) (*index.Snapshot, error) {
	artifacts := make(Artifacts, len(dataArtifacts)+1)
	for _, name := range append([]string{ArtifactMeta}, dataArtifacts...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := ArtifactPath(prefix, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s: %w", path, apperrors.ErrNotFound)
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		artifacts[name] = data
	}
	snap, err := Decode(artifacts)
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", prefix, err)
	}
	s.logger.Info("index artifacts loaded",
		"prefix", prefix,
		"terms", snap.NumTerms(),
		"docs", snap.N(),
	)
	return snap, nil
}

func (s *FileStore) Close() error {
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
