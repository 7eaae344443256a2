package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/ingest"
	"github.com/FuJacob/mapletenders-sub000/internal/refresh"
	"github.com/FuJacob/mapletenders-sub000/internal/sweeper"
)

// upsertChunkSize bounds the rows written per transaction.
const upsertChunkSize = 500

// Store implements ingest.Store, refresh.Store and sweeper.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// TryAcquireRefreshLock takes the refresh lock for owner if it is free or
// was acquired more than staleAfter ago. The check and the write are one
// UPDATE, so concurrent callers cannot both win.
func (s *Store) TryAcquireRefreshLock(ctx context.Context, owner string, staleAfter time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryTryAcquireLock, lockScope, owner, staleAfter.Milliseconds())
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// ReleaseRefreshLock clears the lock if owner still holds it. Releasing a
// lock that is free or held by someone else is a no-op.
func (s *Store) ReleaseRefreshLock(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx, queryReleaseLock, lockScope, owner)
	return err
}

// RefreshInProgress reports whether the refresh lock is currently held.
func (s *Store) RefreshInProgress(ctx context.Context) (bool, error) {
	var inProgress bool
	err := s.db.QueryRowContext(ctx, queryLockInProgress, lockScope).Scan(&inProgress)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return inProgress, err
}

// LastRefresh returns the last completed refresh for scope. ok is false when
// the scope has never completed.
func (s *Store) LastRefresh(ctx context.Context, scope string) (time.Time, bool, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, queryGetLastRefresh, scope).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time.UTC(), true, nil
}

// SetLastRefresh records a completed refresh for scope.
func (s *Store) SetLastRefresh(ctx context.Context, scope string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, querySetLastRefresh, scope, t.UTC())
	return err
}

// UpsertTenders inserts or overwrites tenders by id. Each chunk commits in
// its own transaction; the count covers the chunks that committed.
func (s *Store) UpsertTenders(ctx context.Context, tenders []domain.Tender) (int, error) {
	written := 0
	for start := 0; start < len(tenders); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(tenders) {
			end = len(tenders)
		}
		if err := s.upsertChunk(ctx, tenders[start:end]); err != nil {
			return written, err
		}
		written += end - start
	}
	return written, nil
}

func (s *Store) upsertChunk(ctx context.Context, chunk []domain.Tender) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, queryUpsertTender)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range chunk {
		if _, err := stmt.ExecContext(ctx, upsertArgs(t)...); err != nil {
			return fmt.Errorf("tender %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func upsertArgs(t domain.Tender) []any {
	var embedding any
	if t.HasEmbedding() {
		embedding = pgvector.NewVector(t.Embedding)
	}
	return []any{
		t.ID,
		string(t.Source),
		t.SourceReference,
		nullString(t.SourceURL),
		t.Title,
		nullString(t.Description),
		nullString(t.Status),
		nullString(t.Category),
		nullString(t.ProcurementType),
		nullString(t.ProcurementMethod),
		t.PublishedDate,
		t.ClosingDate,
		t.ContractStartDate,
		nullString(t.EntityName),
		nullString(t.EntityCity),
		nullString(t.EntityProvince),
		nullString(t.EntityCountry),
		nullString(t.DeliveryLocation),
		t.EstimatedValue,
		t.Currency,
		nullString(t.ContactName),
		nullString(t.ContactEmail),
		nullString(t.ContactPhone),
		nullString(t.GSIN),
		nullString(t.UNSPSC),
		t.PlanTakersCount,
		t.SubmissionsCount,
		embedding,
		nullString(t.EmbeddingInput),
		t.LastScrapedAt,
	}
}

// RemoveStale deletes rows of source whose reference is not in refs. An
// empty snapshot deletes nothing.
func (s *Store) RemoveStale(ctx context.Context, source domain.SourceKind, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, queryRemoveStale, string(source), pq.Array(refs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RemoveExpired deletes every tender whose closing date is before now.
func (s *Store) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryRemoveExpired, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountTenders returns the stored tenders for source, or all tenders when
// source is empty.
func (s *Store) CountTenders(ctx context.Context, source domain.SourceKind) (int64, error) {
	var n int64
	var err error
	if source == "" {
		err = s.db.QueryRowContext(ctx, queryCountAllTenders).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, queryCountTenders, string(source)).Scan(&n)
	}
	return n, err
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time interface assertions
var (
	_ ingest.Store  = (*Store)(nil)
	_ refresh.Store = (*Store)(nil)
	_ sweeper.Store = (*Store)(nil)
)
