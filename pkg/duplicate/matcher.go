package duplicate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"restock/pkg/fingerprint"
)

// Defaults for the threshold policy. These are configuration, not
// constants; config may override any of them.
const (
	DefaultMinMatches = 2
	DefaultWorkers    = 4
)

// DefaultThresholds returns the per-algorithm maximum distances below
// which an algorithm votes "duplicate".
func DefaultThresholds() map[fingerprint.Algorithm]int {
	return map[fingerprint.Algorithm]int{
		fingerprint.Phash:     3,
		fingerprint.Dhash:     3,
		fingerprint.Ahash:     5,
		fingerprint.Whash:     3,
		fingerprint.Colorhash: 4,
	}
}

// Entry is one already-published image a candidate is compared against.
type Entry struct {
	ID   string
	Path string
}

// Match reports the corpus member a candidate duplicates.
type Match struct {
	ID    string
	Score float64
}

// Matcher applies the weighted multi-algorithm threshold policy.
type Matcher struct {
	Thresholds map[fingerprint.Algorithm]int
	MinMatches int
	Workers    int
	Cache      *fingerprint.Cache
	Logger     *slog.Logger
}

// NewMatcher builds a matcher with the default policy.
func NewMatcher(cache *fingerprint.Cache) *Matcher {
	return &Matcher{
		Thresholds: DefaultThresholds(),
		MinMatches: DefaultMinMatches,
		Workers:    DefaultWorkers,
		Cache:      cache,
	}
}

func (m *Matcher) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Compare counts the algorithms voting "duplicate" between a candidate
// and one corpus member, and accumulates the weighted score over the
// voting algorithms. Algorithms missing from either set, or from the
// threshold policy, do not vote.
func (m *Matcher) Compare(candidate, member fingerprint.Set) (votes int, score float64) {
	for _, alg := range fingerprint.Algorithms() {
		threshold, ok := m.Thresholds[alg]
		if !ok {
			continue
		}
		cf, ok := candidate[alg]
		if !ok {
			continue
		}
		mf, ok := member[alg]
		if !ok {
			continue
		}
		d, err := cf.Distance(mf)
		if err != nil {
			continue
		}
		if d < threshold {
			votes++
			score += 1.0 / float64(1+d)
		}
	}
	return votes, score
}

// FindDuplicate compares the candidate against every corpus member and
// returns the best match, or nil if no member reaches MinMatches votes.
// Corpus fingerprints are computed through the shared cache by a bounded
// worker group; members that cannot be fingerprinted are excluded from
// voting. An empty corpus is not an error.
func (m *Matcher) FindDuplicate(ctx context.Context, candidate fingerprint.Set, corpus []Entry) (*Match, error) {
	if len(candidate) == 0 || len(corpus) == 0 {
		return nil, nil
	}

	workers := m.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	sets := make([]fingerprint.Set, len(corpus))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range corpus {
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := m.Cache.Compute(entry.Path)
			if err != nil {
				m.logger().Debug("excluding corpus member from similarity vote",
					"id", entry.ID, "error", err)
				return nil
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Matching is CPU-local and cheap; run it sequentially in corpus
	// order so score ties break on the first-encountered member.
	var best *Match
	for i, set := range sets {
		if set == nil {
			continue
		}
		votes, score := m.Compare(candidate, set)
		if votes < m.MinMatches {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{ID: corpus[i].ID, Score: score}
		}
	}
	return best, nil
}
