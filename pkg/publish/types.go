package publish

// Request describes one candidate item. It is created by the caller and
// never mutated by the pipeline; derived values like the content hash are
// carried in the Outcome.
type Request struct {
	DisplayName   string
	FilePath      string
	AssetKind     string
	DestinationID string
	Description   string
	Price         int
}

// OutcomeKind tags the terminal state of one pipeline run.
type OutcomeKind int

const (
	Published OutcomeKind = iota
	DuplicateSkipped
	Rejected
	TransientFailure
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Published:
		return "published"
	case DuplicateSkipped:
		return "duplicate skipped"
	case Rejected:
		return "rejected"
	case TransientFailure:
		return "transient failure"
	case FatalFailure:
		return "failed"
	}
	return "unknown"
}

// RejectCause distinguishes terminal application-level rejections.
type RejectCause int

const (
	CauseNone RejectCause = iota
	CauseInsufficientFunds
	CauseNoPermission
	CauseModerated
	CauseContentFiltered
)

func (c RejectCause) String() string {
	switch c {
	case CauseInsufficientFunds:
		return "insufficient funds"
	case CauseNoPermission:
		return "no permission"
	case CauseModerated:
		return "moderated"
	case CauseContentFiltered:
		return "content filtered"
	}
	return "none"
}

// Outcome is the only channel pipeline state is reported through; the
// pipeline has no shared mutable status fields.
type Outcome struct {
	Kind        OutcomeKind
	AssetID     string      // set when Kind == Published
	ContentHash string      // set whenever hashing succeeded
	Reason      string      // human-readable detail
	Cause       RejectCause // set when Kind == Rejected
	Err         error       // underlying error for failure kinds
}
