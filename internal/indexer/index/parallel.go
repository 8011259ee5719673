package index

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BuildParallel runs the first pass over contiguous chunks of docs on up to
// workers goroutines, merges the partial postings in chunk order and then
// finalizes. The resulting snapshot is identical to Build(docs, opts).
func BuildParallel(ctx context.Context, docs []Document, opts Options, workers int) (*Snapshot, error) {
	if workers <= 1 || len(docs) < 2 {
		return Build(docs, opts)
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	chunk := (len(docs) + workers - 1) / workers
	parts := make([]*Builder, 0, workers)
	for start := 0; start < len(docs); start += chunk {
		parts = append(parts, NewBuilder(opts))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		start := i * chunk
		end := min(start+chunk, len(docs))
		g.Go(func() error {
			for j, doc := range docs[start:end] {
				if j%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := part.Add(doc); err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := NewBuilder(opts)
	for _, part := range parts {
		if err := b.absorb(part); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}
