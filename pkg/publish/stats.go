package publish

import (
	"sync"
	"time"
)

const recentErrorLimit = 5

// Stats aggregates outcomes across a run. Safe for concurrent use by
// pipeline workers.
type Stats struct {
	mu            sync.Mutex
	start         time.Time
	counts        map[OutcomeKind]int
	rejects       map[RejectCause]int
	lastPublished time.Time
	recentErrors  []string
}

// NewStats starts a statistics collector for one run.
func NewStats() *Stats {
	return &Stats{
		start:   time.Now(),
		counts:  make(map[OutcomeKind]int),
		rejects: make(map[RejectCause]int),
	}
}

// Add records one item's outcome.
func (s *Stats) Add(req Request, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[outcome.Kind]++
	switch outcome.Kind {
	case Published:
		s.lastPublished = time.Now()
	case Rejected:
		s.rejects[outcome.Cause]++
	case TransientFailure, FatalFailure:
		msg := req.DisplayName + ": " + outcome.Reason
		s.recentErrors = append(s.recentErrors, msg)
		if len(s.recentErrors) > recentErrorLimit {
			s.recentErrors = s.recentErrors[len(s.recentErrors)-recentErrorLimit:]
		}
	}
}

// Summary is a point-in-time snapshot of run statistics.
type Summary struct {
	Runtime       time.Duration
	Processed     int
	Published     int
	Duplicates    int
	Rejected      int
	Failed        int
	RejectCounts  map[RejectCause]int
	LastPublished time.Time
	RecentErrors  []string
}

// Summary snapshots the collected counts.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	processed := 0
	for _, n := range s.counts {
		processed += n
	}
	rejects := make(map[RejectCause]int, len(s.rejects))
	for cause, n := range s.rejects {
		rejects[cause] = n
	}
	return Summary{
		Runtime:       time.Since(s.start),
		Processed:     processed,
		Published:     s.counts[Published],
		Duplicates:    s.counts[DuplicateSkipped],
		Rejected:      s.counts[Rejected],
		Failed:        s.counts[TransientFailure] + s.counts[FatalFailure],
		RejectCounts:  rejects,
		LastPublished: s.lastPublished,
		RecentErrors:  append([]string(nil), s.recentErrors...),
	}
}
