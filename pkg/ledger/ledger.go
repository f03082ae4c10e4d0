package ledger

// Ledger is the durable record of (destination, content hash) pairs
// already published: the source of truth for "already done". Membership
// checks are O(1) against an in-memory set loaded at open; every Record
// is flushed to durable storage so the next process start sees it.
type Ledger interface {
	// Contains reports whether the pair has already been published.
	Contains(destinationID, contentHash string) bool

	// Record adds the pair. Recording an existing pair is a no-op, not
	// an error.
	Record(destinationID, contentHash string) error

	Close() error
}

type pair struct {
	destination string
	hash        string
}
