package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
)

// SweepResult counts the orphaned documents removed per store.
type SweepResult struct {
	Orphans map[StoreName][]uuid.UUID
	Removed map[StoreName]int
}

// Total returns the number of removed entries over all stores.
func (r *SweepResult) Total() int {
	total := 0
	for _, n := range r.Removed {
		total += n
	}
	return total
}

// Sweeper garbage collects side store entries of documents without a metadata record.
type Sweeper struct {
	orchestrator *Orchestrator
	collector    *helper.Collector
	logger       *slog.Logger
}

// NewSweeper creates a sweeper sharing the stores and document locks of the orchestrator.
// The collector may be nil.
func NewSweeper(orchestrator *Orchestrator, collector *helper.Collector, logger *slog.Logger) (*Sweeper, error) {
	if orchestrator == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		orchestrator: orchestrator,
		collector:    collector,
		logger:       logger.With("component", "sweeper"),
	}, nil
}

// Sweep deletes content, graph and vector entries whose document has no record.
// Each orphan is re-checked under its document lock so in-flight commits are never swept.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	o := s.orchestrator
	result := &SweepResult{
		Orphans: map[StoreName][]uuid.UUID{},
		Removed: map[StoreName]int{},
	}

	committed, err := o.metadata.ListDocumentIDs(ctx)
	if err != nil {
		return result, newStoreError(StoreMetadata, "list", err)
	}
	isCommitted := make(map[uuid.UUID]bool, len(committed))
	for _, id := range committed {
		isCommitted[id] = true
	}

	errs := []error{}
	for _, store := range o.sideStores() {
		ids, err := store.list(ctx)
		if err != nil {
			errs = append(errs, newStoreError(store.name, "list", err))
			continue
		}

		for _, id := range ids {
			if isCommitted[id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			removed, swept, err := s.sweepDocument(ctx, store, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !swept {
				isCommitted[id] = true
				continue
			}
			result.Orphans[store.name] = append(result.Orphans[store.name], id)
			result.Removed[store.name] += removed
		}

		s.collector.ObserveOrphans(string(store.name), len(result.Orphans[store.name]))
	}

	if result.Total() > 0 {
		s.logger.Info("Swept orphans", "removed", result.Removed)
	}

	return result, errors.Join(errs...)
}

func (s *Sweeper) sweepDocument(ctx context.Context, store sideStore, id uuid.UUID) (int, bool, error) {
	unlock := s.orchestrator.locks.Lock(id)
	defer unlock()

	committed, err := s.orchestrator.metadata.FilterCommitted(ctx, []uuid.UUID{id})
	if err != nil {
		return 0, false, newStoreError(StoreMetadata, "filter committed", err)
	}
	if len(committed) > 0 {
		return 0, false, nil
	}

	removed, err := store.delete(ctx, id)
	if err != nil {
		return 0, false, newStoreError(store.name, "delete orphan", err)
	}

	s.logger.Debug("Removed orphan", "store", store.name, "document_id", id, "entries", removed)

	return removed, true, nil
}

// Run sweeps every interval until ctx is done. Sweep errors are logged, not returned.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return helper.NewError("run sweeper", errors.New("interval must be positive"))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Error("Sweep failed", "error", err)
			}
		}
	}
}
