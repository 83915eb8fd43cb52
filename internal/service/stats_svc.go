package service

import (
	"context"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type StatsService struct {
	store StatsStore
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// GetStats returns row counts and jobs by status.
func (s *StatsService) GetStats(ctx context.Context) (*model.StatsResponse, error) {
	return s.store.GetStats(ctx)
}
