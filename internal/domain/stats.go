package domain

// AverageMovieMinutes is the average feature film runtime used to estimate
// time spent watching.
const AverageMovieMinutes = 130.9

// averageMovieTenths is AverageMovieMinutes in tenths of a minute, so the
// floor arithmetic below stays exact.
const averageMovieTenths = 1309

// WatchStats is the payload of the statistics page.
type WatchStats struct {
	User               string `json:"user"`
	WatchlistSize      int    `json:"watchlistSize"`
	MoviesWatched      int    `json:"moviesWatched"`
	WatchHours         int    `json:"watchHours"`
	WatchMinutes       int    `json:"watchMinutes"`
	MoviesPlanned      int    `json:"moviesPlanned"`
	RejectedMovieCount int    `json:"rejectedMovieCount"`
}

// ComputeStats derives the summary counters for a watchlist.
// Watch time is floor(watched*130.9) minutes split into hours and minutes.
func ComputeStats(username string, watchlist []WatchlistEntry, rejected []string) WatchStats {
	st := WatchStats{
		User:               username,
		WatchlistSize:      len(watchlist),
		RejectedMovieCount: len(rejected),
	}
	for _, e := range watchlist {
		switch e.Watched {
		case StatusCompleted:
			st.MoviesWatched++
		case StatusPlanToWatch:
			st.MoviesPlanned++
		}
	}

	minutes := st.MoviesWatched * averageMovieTenths / 10
	st.WatchHours = minutes / 60
	st.WatchMinutes = minutes % 60
	return st
}
