// Package repository persists analysis records per user.
package repository

import (
	"cmp"
	"context"
	"slices"

	"github.com/okian/devhistory/internal/domain/record"
)

// Store provides read/write access to users' analysis histories. Records
// are copied across the boundary; callers never share state with a store.
type Store interface {
	// Put inserts or replaces the record with r.ID for userID.
	Put(ctx context.Context, userID string, r record.AnalysisRecord) error

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error)

	// List returns the user's whole history ordered by completedAt, then id.
	// A user without records has an empty history.
	List(ctx context.Context, userID string) ([]record.AnalysisRecord, error)

	// Delete removes one record or returns ErrNotFound.
	Delete(ctx context.Context, userID, recordID string) error

	// Count returns the number of records across all users.
	Count(ctx context.Context) int

	// Users returns the ids of users with at least one record, sorted.
	Users(ctx context.Context) ([]string, error)

	Close() error
}

// sortHistory gives every store the same List order.
func sortHistory(records []record.AnalysisRecord) {
	slices.SortFunc(records, func(a, b record.AnalysisRecord) int {
		if c := a.CompletedAt.Compare(b.CompletedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
