package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exampin-backend/internal/model"
)

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

var resultCopyColumns = []string{
	"id", "session_id", "student_name", "pin", "exam_id", "exam_title",
	"score", "total_points", "percentage", "passed", "submit_reason", "created_at",
}

const resultColumns = `id, session_id, student_name, pin, exam_id, exam_title,
	score, total_points, percentage, passed, submit_reason, created_at`

// CopyInsert bulk-inserts results with COPY. The whole batch fails if any
// id already exists.
func (r *ResultRepository) CopyInsert(ctx context.Context, results []model.Result) (int64, error) {
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"results"},
		resultCopyColumns,
		pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
			res := results[i]
			return []any{
				res.ID, res.SessionID, res.StudentName, res.Pin, res.ExamID, res.ExamTitle,
				res.Score, res.TotalPoints, res.Percentage, res.Passed, string(res.SubmitReason), res.CreatedAt,
			}, nil
		}),
	)
}

// Insert stores one result, ignoring a duplicate id.
func (r *ResultRepository) Insert(ctx context.Context, res *model.Result) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		res.ID, res.SessionID, res.StudentName, res.Pin, res.ExamID, res.ExamTitle,
		res.Score, res.TotalPoints, res.Percentage, res.Passed, res.SubmitReason, res.CreatedAt,
	)
	return err
}

func scanResult(row rowScanner) (*model.Result, error) {
	var res model.Result
	if err := row.Scan(&res.ID, &res.SessionID, &res.StudentName, &res.Pin, &res.ExamID, &res.ExamTitle,
		&res.Score, &res.TotalPoints, &res.Percentage, &res.Passed, &res.SubmitReason, &res.CreatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByID retrieves a result by its UUID.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return scanResult(r.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id))
}

// ResultFilter narrows result listings. Search matches student name or exam
// title, case-insensitively.
type ResultFilter struct {
	Search string
	ExamID *uuid.UUID
}

// List returns results newest first. A limit of 0 returns every match.
func (r *ResultRepository) List(ctx context.Context, f ResultFilter, limit, offset int) ([]model.Result, int, error) {
	base := ` FROM results WHERE 1=1`
	var args []any
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		base += fmt.Sprintf(" AND (student_name ILIKE $%d OR exam_title ILIKE $%d)", len(args), len(args))
	}
	if f.ExamID != nil {
		args = append(args, *f.ExamID)
		base += fmt.Sprintf(" AND exam_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + resultColumns + base + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *res)
	}
	return results, total, rows.Err()
}
