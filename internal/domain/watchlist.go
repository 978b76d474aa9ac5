package domain

// Watch statuses with a meaning for statistics. Any other value is an
// in-progress state and only counts towards the watchlist size.
const (
	StatusCompleted   = "Completed"
	StatusPlanToWatch = "Plan to Watch"
)

// WatchlistEntry is a movie on a user's watchlist together with its status.
type WatchlistEntry struct {
	MovieID string `json:"movieId"`
	Title   string `json:"title,omitempty"`
	Watched string `json:"watched"`
}
