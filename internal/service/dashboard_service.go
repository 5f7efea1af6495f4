package service

import (
	"context"

	"github.com/stemsi/exampin-backend/internal/model"
)

// DashboardStore is the persistence used by DashboardService.
type DashboardStore interface {
	GetStats(ctx context.Context) (*model.DashboardStats, error)
}

// DashboardData consolidates the admin dashboard counters.
type DashboardData struct {
	model.DashboardStats
	LiveSessions int `json:"live_sessions"`
}

// LiveCounter reports how many sessions are held in memory.
type LiveCounter interface {
	Count() int
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardStore
	live LiveCounter
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore, live LiveCounter) *DashboardService {
	return &DashboardService{repo: repo, live: live}
}

// GetDashboardData returns the stored counters plus the live session count.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	data := &DashboardData{DashboardStats: *stats}
	if s.live != nil {
		data.LiveSessions = s.live.Count()
	}
	return data, nil
}
