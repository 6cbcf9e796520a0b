package mirror

import "sync/atomic"

// Stats counts dispatch outcomes for one mapping. Safe for concurrent use;
// read by the status server while workers update.
type Stats struct {
	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
}

func (s *Stats) addDispatched() { s.dispatched.Add(1) }
func (s *Stats) addSucceeded()  { s.succeeded.Add(1) }
func (s *Stats) addFailed()     { s.failed.Add(1) }
func (s *Stats) addSkipped()    { s.skipped.Add(1) }

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Dispatched int64 `json:"dispatched"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Dispatched: s.dispatched.Load(),
		Succeeded:  s.succeeded.Load(),
		Failed:     s.failed.Load(),
		Skipped:    s.skipped.Load(),
	}
}
