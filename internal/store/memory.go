package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
)

var (
	// ErrNotFound is returned when no report is available for a source and location.
	ErrNotFound = errors.New("no reports for location")
)

// reportHistory holds the time-ordered reports of one source and location.
type reportHistory struct {
	reports []advisor.Report
}

// MemoryStore is a concurrency-safe in-memory history of cycle reports.
type MemoryStore struct {
	mu sync.RWMutex

	// key: source + "/" + location
	data map[string]*reportHistory

	maxHistory int           // max reports per key
	maxAge     time.Duration // max age of reports

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// A maxHistory or maxAge <= 0 is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*reportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func key(source advisor.Source, location string) string {
	return string(source) + "/" + location
}

// SaveReport appends a report and enforces retention.
func (s *MemoryStore) SaveReport(r advisor.Report) {
	k := key(r.Source, r.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[k]
	if !ok {
		history = &reportHistory{}
		s.data[k] = history
	}
	history.reports = append(history.reports, r)

	// Cycles can finish out of order only by clock skew; keep the slice sorted.
	n := len(history.reports)
	if n > 1 && history.reports[n-1].StartedAt.Before(history.reports[n-2].StartedAt) {
		sort.SliceStable(history.reports, func(i, j int) bool {
			return history.reports[i].StartedAt.Before(history.reports[j].StartedAt)
		})
	}

	if s.maxHistory > 0 && len(history.reports) > s.maxHistory {
		over := len(history.reports) - s.maxHistory
		history.reports = history.reports[over:]
	}

	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for i < len(history.reports) && history.reports[i].StartedAt.Before(cutoff) {
			i++
		}
		// The newest report is kept even when stale so the unknown state stays visible.
		if i == len(history.reports) {
			i--
		}
		history.reports = history.reports[i:]
	}
}

// GetLatest returns the most recent report for a source and location.
func (s *MemoryStore) GetLatest(source advisor.Source, location string) (advisor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key(source, location)]
	if !ok || len(history.reports) == 0 {
		return advisor.Report{}, ErrNotFound
	}
	return history.reports[len(history.reports)-1], nil
}

// GetRange returns the reports started between from and to (inclusive).
func (s *MemoryStore) GetRange(source advisor.Source, location string, from, to time.Time) ([]advisor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key(source, location)]
	if !ok || len(history.reports) == 0 {
		return nil, ErrNotFound
	}

	var result []advisor.Report
	for _, r := range history.reports {
		if !r.StartedAt.Before(from) && !r.StartedAt.After(to) {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Latest returns the newest report of every source and location, ordered by key.
func (s *MemoryStore) Latest() []advisor.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, h := range s.data {
		if len(h.reports) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]advisor.Report, 0, len(keys))
	for _, k := range keys {
		h := s.data[k]
		out = append(out, h.reports[len(h.reports)-1])
	}
	return out
}
