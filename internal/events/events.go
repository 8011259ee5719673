// Package events announces saved index snapshots on Kafka and reacts to
// those announcements by hot-reloading a searcher.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
)

// IndexPublished is emitted after an artifact group has been fully saved.
type IndexPublished struct {
	Prefix      string    `json:"prefix"`
	Backend     string    `json:"backend"`
	N           int       `json:"n"`
	Terms       int       `json:"terms"`
	PublishedAt time.Time `json:"published_at"`
}

func NewIndexPublished(prefix, backend string, snap *index.Snapshot, at time.Time) IndexPublished {
	return IndexPublished{
		Prefix:      prefix,
		Backend:     backend,
		N:           snap.N(),
		Terms:       snap.NumTerms(),
		PublishedAt: at.UTC(),
	}
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Publish sends evt keyed by its prefix, so announcements for one artifact
// group stay ordered on a single partition.
func Publish(ctx context.Context, p Publisher, evt IndexPublished) error {
	if err := p.Publish(ctx, evt.Prefix, evt); err != nil {
		return fmt.Errorf("announcing index %s: %w", evt.Prefix, err)
	}
	return nil
}

type Reloader interface {
	Prefix() string
	Reload(ctx context.Context) error
}

type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// HandleIndexPublished reloads r when an announcement for its prefix
// arrives and then clears inv, which may be nil. Undecodable messages are
// logged and skipped. A failed reload is returned so the message is not
// committed.
func HandleIndexPublished(r Reloader, inv Invalidator) kafka.MessageHandler {
	log := logger.WithComponent("index-events")
	return func(ctx context.Context, key, value []byte) error {
		evt, err := kafka.DecodeJSON[IndexPublished](value)
		if err != nil {
			log.Error("dropping undecodable index event", "key", string(key), "error", err)
			return nil
		}
		if evt.Prefix != r.Prefix() {
			log.Debug("ignoring index event for other prefix", "prefix", evt.Prefix)
			return nil
		}
		if err := r.Reload(ctx); err != nil {
			return fmt.Errorf("handling index event for %s: %w", evt.Prefix, err)
		}
		if inv != nil {
			if _, err := inv.Invalidate(ctx); err != nil {
				log.Warn("cache invalidation after reload failed", "error", err)
			}
		}
		log.Info("index reloaded from event",
			"prefix", evt.Prefix,
			"backend", evt.Backend,
			"n", evt.N,
			"terms", evt.Terms,
		)
		return nil
	}
}
