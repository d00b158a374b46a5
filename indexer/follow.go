package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/lulo-labs/lulo-sc/core/events"
)

// Source is a sequenced event log the indexer can catch up from.
type Source interface {
	Read(cursor uint64, limit int) ([]events.Committed, uint64, error)
	Subscribe(buffer int) (<-chan events.Committed, uint64, func())
}

const (
	followPage    = 500
	followBuffer  = 256
	followBackoff = time.Second
)

// Follow replays src from the indexer cursor and then tails it until ctx is
// cancelled. A subscription dropped for falling behind is resumed from the
// journal.
func (i *Indexer) Follow(ctx context.Context, src Source, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		err := i.followOnce(ctx, src)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn("indexer follow interrupted", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(followBackoff):
		}
	}
}

func (i *Indexer) followOnce(ctx context.Context, src Source) error {
	live, head, cancel := src.Subscribe(followBuffer)
	defer cancel()

	cursor, err := i.Next(ctx)
	if err != nil {
		return err
	}
	for cursor < head {
		records, next, err := src.Read(cursor, followPage)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}
		if err := i.HandleCommitted(records); err != nil {
			return err
		}
		cursor = next
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-live:
			if !ok {
				return nil
			}
			if err := i.HandleCommitted([]events.Committed{rec}); err != nil {
				return err
			}
		}
	}
}
