package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/memomind/internal/domain"
)

const noteColumns = `id, owner_id, title, understanding, analysis, last_reviewed_at, review_count, created_at, updated_at, source_hash`

// noteRow is the on-disk shape of a note.
type noteRow struct {
	ID             string         `db:"id"`
	OwnerID        string         `db:"owner_id"`
	Title          string         `db:"title"`
	Understanding  string         `db:"understanding"`
	Analysis       sql.NullString `db:"analysis"`
	LastReviewedAt sql.NullInt64  `db:"last_reviewed_at"`
	ReviewCount    int            `db:"review_count"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
	SourceHash     sql.NullString `db:"source_hash"`
}

func (r noteRow) toDomain() (domain.Note, error) {
	n := domain.Note{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Title:          r.Title,
		Understanding:  r.Understanding,
		LastReviewedAt: timeFromNull(r.LastReviewedAt),
		ReviewCount:    r.ReviewCount,
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
		SourceHash:     r.SourceHash.String,
	}
	if r.Analysis.Valid && r.Analysis.String != "" {
		var a domain.Analysis
		if err := json.Unmarshal([]byte(r.Analysis.String), &a); err != nil {
			return domain.Note{}, fmt.Errorf("failed to decode analysis of note %s: %w", r.ID, err)
		}
		n.Analysis = &a
	}
	return n, nil
}

func encodeAnalysis(a *domain.Analysis) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode analysis: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func rowsToNotes(rows []noteRow) ([]domain.Note, error) {
	notes := make([]domain.Note, 0, len(rows))
	for _, r := range rows {
		n, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// getNote runs a single-row query and maps no rows to domain.ErrNotFound.
func (db *DB) getNote(ctx context.Context, query string, args ...any) (*domain.Note, error) {
	var row noteRow
	if err := db.conn.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	n, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote inserts a note for its owner. The id and timestamps are assigned here.
func (db *DB) CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := db.now().UTC().Truncate(time.Millisecond)
	note.CreatedAt = now
	note.UpdatedAt = now
	note.ReviewCount = 0
	note.LastReviewedAt = nil

	analysis, err := encodeAnalysis(note.Analysis)
	if err != nil {
		return nil, err
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, title, understanding, analysis, review_count, created_at, updated_at, source_hash)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
	`,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Understanding,
		analysis,
		toMillis(now),
		toMillis(now),
		nullString(note.SourceHash),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note %s: %w", note.ID, err)
	}
	return &note, nil
}

// FindNote retrieves a note by its key.
func (db *DB) FindNote(ctx context.Context, key domain.NoteKey) (*domain.Note, error) {
	n, err := db.getNote(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ? AND owner_id = ?`, key.ID, key.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to find note %s: %w", key.ID, err)
	}
	return n, err
}

// ListNotes retrieves all notes of the owner, newest first.
func (db *DB) ListNotes(ctx context.Context, ownerID string) ([]domain.Note, error) {
	var rows []noteRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+noteColumns+`
		FROM notes WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list notes for owner %s: %w", ownerID, err)
	}
	return rowsToNotes(rows)
}

// UpdateNote replaces the content of a note and returns the stored result.
func (db *DB) UpdateNote(ctx context.Context, key domain.NoteKey, update domain.NoteUpdate) (*domain.Note, error) {
	now := toMillis(db.now())

	var (
		n   *domain.Note
		err error
	)
	if update.ReplaceAnalysis {
		analysis, encErr := encodeAnalysis(update.Analysis)
		if encErr != nil {
			return nil, encErr
		}
		n, err = db.getNote(ctx, `
			UPDATE notes
			SET title = ?, understanding = ?, analysis = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?
			RETURNING `+noteColumns,
			update.Title, update.Understanding, analysis, now, key.ID, key.OwnerID,
		)
	} else {
		n, err = db.getNote(ctx, `
			UPDATE notes
			SET title = ?, understanding = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?
			RETURNING `+noteColumns,
			update.Title, update.Understanding, now, key.ID, key.OwnerID,
		)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to update note %s: %w", key.ID, err)
	}
	return n, err
}

// DeleteNote permanently removes a note.
func (db *DB) DeleteNote(ctx context.Context, key domain.NoteKey) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM notes
		WHERE id = ? AND owner_id = ?
	`, key.ID, key.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", key.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for note %s: %w", key.ID, err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkReviewed sets last_reviewed_at and increments review_count in one statement.
func (db *DB) MarkReviewed(ctx context.Context, key domain.NoteKey, at time.Time) (*domain.Note, error) {
	n, err := db.getNote(ctx, `
		UPDATE notes
		SET last_reviewed_at = ?, review_count = review_count + 1, updated_at = ?
		WHERE id = ? AND owner_id = ?
		RETURNING `+noteColumns,
		toMillis(at), toMillis(at), key.ID, key.OwnerID,
	)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to mark note %s reviewed: %w", key.ID, err)
	}
	return n, err
}

// FindDue returns up to limit notes not reviewed since today, never-reviewed first.
func (db *DB) FindDue(ctx context.Context, ownerID string, today time.Time, limit int) ([]domain.Note, error) {
	var rows []noteRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE owner_id = ? AND (last_reviewed_at IS NULL OR last_reviewed_at < ?)
		ORDER BY last_reviewed_at IS NOT NULL, last_reviewed_at ASC, created_at ASC
		LIMIT ?
	`, ownerID, toMillis(today), limit); err != nil {
		return nil, fmt.Errorf("failed to find due notes for owner %s: %w", ownerID, err)
	}
	return rowsToNotes(rows)
}

// CountReviewedSince counts notes of the owner reviewed at or after since.
func (db *DB) CountReviewedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notes WHERE owner_id = ? AND last_reviewed_at >= ?
	`, ownerID, toMillis(since)); err != nil {
		return 0, fmt.Errorf("failed to count reviewed notes for owner %s: %w", ownerID, err)
	}
	return count, nil
}

// CountByOwner counts all notes of the owner.
func (db *DB) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notes WHERE owner_id = ?
	`, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count notes for owner %s: %w", ownerID, err)
	}
	return count, nil
}

// CountDue counts notes of the owner not reviewed since today.
func (db *DB) CountDue(ctx context.Context, ownerID string, today time.Time) (int, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notes
		WHERE owner_id = ? AND (last_reviewed_at IS NULL OR last_reviewed_at < ?)
	`, ownerID, toMillis(today)); err != nil {
		return 0, fmt.Errorf("failed to count due notes for owner %s: %w", ownerID, err)
	}
	return count, nil
}

// HasSourceHash reports whether the owner already has a note imported with hash.
func (db *DB) HasSourceHash(ctx context.Context, ownerID, hash string) (bool, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notes WHERE owner_id = ? AND source_hash = ?
	`, ownerID, hash); err != nil {
		return false, fmt.Errorf("failed to check source hash %s: %w", hash, err)
	}
	return count > 0, nil
}
