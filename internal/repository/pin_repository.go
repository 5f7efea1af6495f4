package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exampin-backend/internal/model"
)

// PinRepository handles access pin data access.
type PinRepository struct {
	pool *pgxpool.Pool
}

// NewPinRepository creates a new PinRepository.
func NewPinRepository(pool *pgxpool.Pool) *PinRepository {
	return &PinRepository{pool: pool}
}

const pinColumns = `p.id, p.pin, p.exam_id, e.title, p.status, p.created_at, p.used_at`

// InsertBatch inserts unused pins for one exam in a single statement. Codes
// that already exist are skipped; only the rows actually inserted are
// returned.
func (r *PinRepository) InsertBatch(ctx context.Context, examID uuid.UUID, codes []string) ([]model.Pin, error) {
	rows, err := r.pool.Query(ctx,
		`WITH inserted AS (
			INSERT INTO pins (pin, exam_id, status)
			SELECT code, $1, $3 FROM UNNEST($2::text[]) AS code
			ON CONFLICT (pin) DO NOTHING
			RETURNING id, pin, exam_id, status, created_at, used_at
		 )
		 SELECT p.id, p.pin, p.exam_id, e.title, p.status, p.created_at, p.used_at
		 FROM inserted p JOIN exams e ON e.id = p.exam_id`,
		examID, codes, model.PinStatusUnused,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pins []model.Pin
	for rows.Next() {
		var p model.Pin
		if err := rows.Scan(&p.ID, &p.Pin, &p.ExamID, &p.ExamTitle, &p.Status, &p.CreatedAt, &p.UsedAt); err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

// ExistingCodes returns which of codes are already stored.
func (r *PinRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT pin FROM pins WHERE pin = ANY($1::text[])`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		existing[code] = struct{}{}
	}
	return existing, rows.Err()
}

// Redeem marks an unused pin as used in one statement and returns it.
// pgx.ErrNoRows means no unused pin with that code exists.
func (r *PinRepository) Redeem(ctx context.Context, code string) (*model.Pin, error) {
	p := &model.Pin{}
	err := r.pool.QueryRow(ctx,
		`WITH redeemed AS (
			UPDATE pins SET status = $2, used_at = NOW()
			WHERE pin = $1 AND status = $3
			RETURNING id, pin, exam_id, status, created_at, used_at
		 )
		 SELECT p.id, p.pin, p.exam_id, e.title, p.status, p.created_at, p.used_at
		 FROM redeemed p JOIN exams e ON e.id = p.exam_id`,
		code, model.PinStatusUsed, model.PinStatusUnused,
	).Scan(&p.ID, &p.Pin, &p.ExamID, &p.ExamTitle, &p.Status, &p.CreatedAt, &p.UsedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByCode retrieves a pin regardless of status.
func (r *PinRepository) GetByCode(ctx context.Context, code string) (*model.Pin, error) {
	p := &model.Pin{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+pinColumns+` FROM pins p JOIN exams e ON e.id = p.exam_id WHERE p.pin = $1`, code,
	).Scan(&p.ID, &p.Pin, &p.ExamID, &p.ExamTitle, &p.Status, &p.CreatedAt, &p.UsedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PinFilter narrows pin listings.
type PinFilter struct {
	ExamID *uuid.UUID
	Status model.PinStatus
}

func (f PinFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	if f.ExamID != nil {
		args = append(args, *f.ExamID)
		clause += fmt.Sprintf(" AND p.exam_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clause += fmt.Sprintf(" AND p.status = $%d", len(args))
	}
	return clause, args
}

// List returns pins newest first. A limit of 0 returns every matching pin.
func (r *PinRepository) List(ctx context.Context, f PinFilter, limit, offset int) ([]model.Pin, int, error) {
	where, args := f.where()
	base := ` FROM pins p JOIN exams e ON e.id = p.exam_id` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + pinColumns + base + ` ORDER BY p.created_at DESC, p.pin ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pins := []model.Pin{}
	for rows.Next() {
		var p model.Pin
		if err := rows.Scan(&p.ID, &p.Pin, &p.ExamID, &p.ExamTitle, &p.Status, &p.CreatedAt, &p.UsedAt); err != nil {
			return nil, 0, err
		}
		pins = append(pins, p)
	}
	return pins, total, rows.Err()
}
