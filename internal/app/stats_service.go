package app

import (
	"context"

	"moviestats/internal/domain"
)

// StatsService computes watchlist statistics.
type StatsService struct {
	users domain.UserRepository
}

// NewStatsService creates a StatsService backed by the given repository.
func NewStatsService(users domain.UserRepository) *StatsService {
	return &StatsService{users: users}
}

// ForUser loads the user's watchlist and summarizes it. An unknown username
// yields zeroed stats together with domain.ErrUserNotFound.
func (s *StatsService) ForUser(ctx context.Context, username string) (domain.WatchStats, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return domain.WatchStats{}, err
	}
	if user == nil {
		return domain.WatchStats{User: username}, domain.ErrUserNotFound
	}
	return domain.ComputeStats(user.Username, user.Watchlist, user.RejectedMovies), nil
}
