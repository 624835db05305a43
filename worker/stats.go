package worker

import "sync/atomic"

// Stats counts what a worker did. It is safe to read while the worker runs.
type Stats struct {
	Fetched     atomic.Int64
	Processed   atomic.Int64
	Failed      atomic.Int64
	FetchErrors atomic.Int64
}

type StatsSnapshot struct {
	Fetched     int64 `json:"fetched"`
	Processed   int64 `json:"processed"`
	Failed      int64 `json:"failed"`
	FetchErrors int64 `json:"fetch_errors"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Fetched:     s.Fetched.Load(),
		Processed:   s.Processed.Load(),
		Failed:      s.Failed.Load(),
		FetchErrors: s.FetchErrors.Load(),
	}
}
