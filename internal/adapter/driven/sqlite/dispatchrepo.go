package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/ericfisherdev/formrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DispatchStore = (*DispatchRepo)(nil)

const dispatchColumns = `id, submission_id, start_marker, end_marker, status, status_code, error, source, submitted_at, created_at`

// DispatchRepo is the SQLite implementation of the DispatchStore port interface.
type DispatchRepo struct {
	db  *DB
	now func() time.Time
}

// NewDispatchRepo creates a new DispatchRepo backed by the given DB.
func NewDispatchRepo(db *DB) *DispatchRepo {
	return &DispatchRepo{db: db, now: time.Now}
}

// Record appends a dispatch record. A zero CreatedAt is stamped with the
// current time; Source defaults to webhook.
func (r *DispatchRepo) Record(ctx context.Context, d model.Dispatch) (model.Dispatch, error) {
	const query = `INSERT INTO dispatches (submission_id, start_marker, end_marker, status, status_code, error, source, submitted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	d.CreatedAt = d.CreatedAt.UTC()
	if d.Source == "" {
		d.Source = model.DispatchSourceWebhook
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		d.SubmissionID,
		d.Start,
		d.End,
		string(d.Status),
		d.StatusCode,
		d.Error,
		string(d.Source),
		formatOptionalTime(d.SubmittedAt),
		d.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Dispatch{}, fmt.Errorf("record dispatch for submission %q: %w", d.SubmissionID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Dispatch{}, fmt.Errorf("get inserted dispatch id: %w", err)
	}
	d.ID = id

	return d, nil
}

// GetByID returns the dispatch record with the given ID, or
// driven.ErrDispatchNotFound.
func (r *DispatchRepo) GetByID(ctx context.Context, id int64) (model.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE id = ?`

	d, err := scanDispatch(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dispatch{}, fmt.Errorf("dispatch %d: %w", id, driven.ErrDispatchNotFound)
	}
	if err != nil {
		return model.Dispatch{}, fmt.Errorf("get dispatch %d: %w", id, err)
	}

	return d, nil
}

// FindDispatched returns the earliest successful dispatch for submissionID,
// or nil if there is none.
func (r *DispatchRepo) FindDispatched(ctx context.Context, submissionID string) (*model.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches
		WHERE submission_id = ? AND status = ?
		ORDER BY id ASC LIMIT 1`

	d, err := scanDispatch(r.db.Reader.QueryRowContext(ctx, query, submissionID, string(model.DispatchStatusDispatched)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find dispatched submission %q: %w", submissionID, err)
	}

	return &d, nil
}

// ListRecent returns up to limit dispatch records, newest first.
func (r *DispatchRepo) ListRecent(ctx context.Context, limit int) ([]model.Dispatch, error) {
	if limit <= 0 {
		return []model.Dispatch{}, nil
	}

	query := `SELECT ` + dispatchColumns + ` FROM dispatches ORDER BY id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	dispatches := make([]model.Dispatch, 0, limit)
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	return dispatches, nil
}

// ClaimSubmission inserts a claim row for submissionID. The primary key on
// submission_claims makes the insert the arbiter between concurrent callers.
func (r *DispatchRepo) ClaimSubmission(ctx context.Context, submissionID string) (bool, error) {
	const query = `INSERT INTO submission_claims (submission_id, claimed_at) VALUES (?, ?)
		ON CONFLICT (submission_id) DO NOTHING`

	result, err := r.db.Writer.ExecContext(ctx, query, submissionID, r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("claim submission %q: %w", submissionID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim submission %q: %w", submissionID, err)
	}

	return n == 1, nil
}

// ReleaseSubmission deletes the claim row for submissionID, if any.
func (r *DispatchRepo) ReleaseSubmission(ctx context.Context, submissionID string) error {
	const query = `DELETE FROM submission_claims WHERE submission_id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, submissionID); err != nil {
		return fmt.Errorf("release submission %q: %w", submissionID, err)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row rowScanner) (model.Dispatch, error) {
	var (
		d         model.Dispatch
		status    string
		source      string
		submittedAt string
		createdAt   string
	)

	if err := row.Scan(&d.ID, &d.SubmissionID, &d.Start, &d.End, &status, &d.StatusCode, &d.Error, &source, &submittedAt, &createdAt); err != nil {
		return model.Dispatch{}, err
	}

	d.Status = model.DispatchStatus(status)
	d.Source = model.DispatchSource(source)

	t, err := parseTime(createdAt)
	if err != nil {
		return model.Dispatch{}, fmt.Errorf("parse created_at: %w", err)
	}
	d.CreatedAt = t

	if submittedAt != "" {
		t, err := parseTime(submittedAt)
		if err != nil {
			return model.Dispatch{}, fmt.Errorf("parse submitted_at: %w", err)
		}
		d.SubmittedAt = t
	}

	return d, nil
}

// formatOptionalTime stores a zero time as the empty string.
func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple time formats that SQLite may return.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
