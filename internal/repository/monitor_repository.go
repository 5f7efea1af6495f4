package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the live exam monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// PinCounts holds the pin usage of one exam.
type PinCounts struct {
	Unused int `json:"unused"`
	Used   int `json:"used"`
}

// GetPinCounts returns how many pins of the exam are still unused and used.
func (r *MonitorRepository) GetPinCounts(ctx context.Context, examID uuid.UUID) (*PinCounts, error) {
	c := &PinCounts{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'unused'),
			COUNT(*) FILTER (WHERE status = 'used')
		 FROM pins WHERE exam_id = $1`, examID,
	).Scan(&c.Unused, &c.Used)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ResultStats aggregates the persisted results of one exam.
type ResultStats struct {
	Submitted         int      `json:"submitted"`
	Passed            int      `json:"passed"`
	AveragePercentage *float64 `json:"average_percentage"`
}

// GetResultStats returns submission counters for the exam.
func (r *MonitorRepository) GetResultStats(ctx context.Context, examID uuid.UUID) (*ResultStats, error) {
	s := &ResultStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE passed), AVG(percentage)::float8
		 FROM results WHERE exam_id = $1`, examID,
	).Scan(&s.Submitted, &s.Passed, &s.AveragePercentage)
	if err != nil {
		return nil, err
	}
	return s, nil
}
