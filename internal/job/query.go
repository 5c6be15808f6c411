package job

// Query filters the job collections exposed by the dispatch core and
// the persistence adapter (spec.md §4.8).
type Query struct {
	PRNumber  *int
	Ref       *string
	Before    *int64 // unix seconds, exclusive upper bound on StopTime
	After     *int64 // unix seconds, exclusive lower bound on StopTime
	Limit     int
	Offset    int
}

// Matches reports whether j satisfies the query's PR/ref filters. Time
// bounds are evaluated by the persistence adapter, which can push them
// down into SQL; in-memory collections (waiting/running) only ever
// carry PR/ref filters in practice, since they have no stop time yet.
func (q Query) Matches(j *Job) bool {
	if q.PRNumber != nil && !j.MatchesPR(*q.PRNumber) {
		return false
	}
	if q.Ref != nil && !j.MatchesRef(*q.Ref) {
		return false
	}
	return true
}
