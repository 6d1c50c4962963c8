package service

import (
	"context"
	"fmt"
	"log/slog"

	"finassist/internal/core"
	"finassist/internal/events"
	"finassist/internal/storage"
)

// Publisher is the outbound port for change events.
type Publisher interface {
	Publish(ctx context.Context, event *events.ChangeEvent) error
	Close() error
}

// FinanceService orchestrates mutations: the SQLite write always happens
// first and decides the outcome; the change event for downstream consumers is
// published best-effort afterwards.
type FinanceService struct {
	store     *storage.Store
	publisher Publisher
}

func NewFinanceService(store *storage.Store, publisher Publisher) *FinanceService {
	return &FinanceService{
		store:     store,
		publisher: publisher,
	}
}

// Store exposes the underlying storage handle for read paths.
func (s *FinanceService) Store() *storage.Store {
	return s.store
}

// CreateSnapshot persists a new monthly snapshot and announces it. Duplicate
// keys surface core.ErrDuplicateSnapshot untouched.
func (s *FinanceService) CreateSnapshot(ctx context.Context, snap core.Snapshot) (core.Snapshot, error) {
	created, err := s.store.CreateSnapshot(ctx, snap)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	s.publish(ctx, events.NewSnapshotEvent(
		events.KindSnapshotCreated, created.ID, created.AccountID, created.Year, created.Month))
	return created, nil
}

// UpdateSnapshot applies a partial update; (nil, nil) means no such snapshot.
func (s *FinanceService) UpdateSnapshot(ctx context.Context, accountID int64, period core.Period, patch core.SnapshotPatch) (*core.Snapshot, error) {
	updated, err := s.store.UpdateSnapshot(ctx, accountID, period, patch)
	if err != nil {
		return nil, fmt.Errorf("update snapshot: %w", err)
	}
	if updated == nil {
		return nil, nil
	}

	s.publish(ctx, events.NewSnapshotEvent(
		events.KindSnapshotUpdated, updated.ID, updated.AccountID, updated.Year, updated.Month))
	return updated, nil
}

// AddTransaction appends a detail row and announces it.
func (s *FinanceService) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	created, err := s.store.AddTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.publish(ctx, events.NewTransactionEvent(
		events.KindTransactionAdded, created.ID, created.AccountID))
	return created, nil
}

// AddTransactionsBulk appends several rows atomically.
func (s *FinanceService) AddTransactionsBulk(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	created, err := s.store.AddTransactionsBulk(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("add transactions: %w", err)
	}

	for _, tx := range created {
		s.publish(ctx, events.NewTransactionEvent(
			events.KindTransactionAdded, tx.ID, tx.AccountID))
	}
	return created, nil
}

// DeleteTransaction removes one row and reports whether it existed.
func (s *FinanceService) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	if deleted {
		s.publish(ctx, events.NewTransactionEvent(events.KindTransactionDeleted, id, 0))
	}
	return deleted, nil
}

func (s *FinanceService) publish(ctx context.Context, event *events.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Don't fail the request - the local write succeeded
		slog.ErrorContext(ctx, "Failed to publish change event",
			"kind", event.Kind, "entity_id", event.EntityID, "error", err)
	}
}

// Close releases storage and the publisher.
func (s *FinanceService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close finance service: %v", errs)
	}

	return nil
}
