package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"restock/pkg/classify"
	"restock/pkg/duplicate"
	"restock/pkg/fingerprint"
	"restock/pkg/ledger"
	"restock/pkg/marketplace"
)

// Polling defaults; config may override.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 5
)

// Creator is the marketplace surface the pipeline drives.
type Creator interface {
	CreateAsset(ctx context.Context, req marketplace.CreateRequest) (string, error)
	PollOperation(ctx context.Context, operationID string) (*marketplace.PollResult, error)
	ReleaseAsset(ctx context.Context, req marketplace.ReleaseRequest) error
}

// Pipeline turns one local file into a remotely published, priced item
// exactly once. All collaborators are injected; the pipeline holds no
// package-level state.
type Pipeline struct {
	Ledger ledger.Ledger
	Cache  *fingerprint.Cache

	// Matcher and Corpus enable dedup-by-similarity; either nil disables
	// the check.
	Matcher *duplicate.Matcher
	Corpus  func(req Request) ([]duplicate.Entry, error)

	Client Creator
	Auth   marketplace.AuthContext

	// Classifier gates on content score; nil disables the gate.
	Classifier classify.Classifier
	MaxScore   float64

	Backoff      Backoff
	PollInterval time.Duration
	PollAttempts int

	Logger *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Publish runs the state machine for one item: hash, ledger check,
// content gate, similarity check, create, poll, release, ledger write.
// Every terminal state comes back as an Outcome; the only error a caller
// must treat as batch-fatal is the insufficient-funds rejection.
func (p *Pipeline) Publish(ctx context.Context, req Request) Outcome {
	log := p.logger().With("item", req.DisplayName, "destination", req.DestinationID)

	hash, err := ledger.ContentHash(req.FilePath)
	if err != nil {
		log.Error("hashing failed", "path", req.FilePath, "error", err)
		return Outcome{Kind: FatalFailure, Reason: "hashing failed", Err: err}
	}

	// The ledger gate is mandatory and precedes any network call: it is
	// the primary defense against redundant spend.
	if p.Ledger.Contains(req.DestinationID, hash) {
		log.Info("skipping: already published")
		return Outcome{Kind: DuplicateSkipped, ContentHash: hash, Reason: "already published"}
	}

	if outcome, done := p.contentGate(ctx, log, req, hash); done {
		return outcome
	}
	if outcome, done := p.similarityGate(ctx, log, req, hash); done {
		return outcome
	}

	operationID, err := p.createWithRetry(ctx, req)
	if err != nil {
		return p.createOutcome(log, hash, err)
	}
	log.Debug("asset creation accepted", "operation", operationID)

	assetID, err := p.pollUntilDone(ctx, operationID)
	if err != nil {
		if ctxErr(err) {
			return Outcome{Kind: TransientFailure, ContentHash: hash, Reason: "cancelled", Err: err}
		}
		log.Error("polling timed out", "operation", operationID, "error", err)
		return Outcome{Kind: FatalFailure, ContentHash: hash, Reason: "polling timed out", Err: err}
	}

	if err := p.releaseWithRetry(ctx, req, assetID); err != nil {
		if ctxErr(err) {
			return Outcome{Kind: TransientFailure, ContentHash: hash, Reason: "cancelled", Err: err}
		}
		log.Error("release failed", "asset", assetID, "error", err)
		return Outcome{Kind: FatalFailure, ContentHash: hash, Reason: "release failed", Err: err}
	}

	// The ledger reflects reality, not intent: the write happens only
	// after the remote side confirmed the release.
	if err := p.Ledger.Record(req.DestinationID, hash); err != nil {
		// The item is published; a failed write must not fail the run,
		// but the next session may re-attempt this item.
		log.Error("ledger write failed after publish", "error", err)
	}
	log.Info("published", "asset", assetID, "price", req.Price)
	return Outcome{Kind: Published, AssetID: assetID, ContentHash: hash}
}

func (p *Pipeline) contentGate(ctx context.Context, log *slog.Logger, req Request, hash string) (Outcome, bool) {
	if p.Classifier == nil {
		return Outcome{}, false
	}
	score, err := p.Classifier.Score(ctx, req.FilePath)
	if err != nil {
		log.Warn("content scoring failed", "error", err)
		return Outcome{Kind: FatalFailure, ContentHash: hash, Reason: "content scoring failed", Err: err}, true
	}
	if score > p.MaxScore {
		log.Info("skipping: content filtered", "score", score, "max", p.MaxScore)
		return Outcome{
			Kind:        Rejected,
			ContentHash: hash,
			Cause:       CauseContentFiltered,
			Reason:      fmt.Sprintf("content score %.2f above %.2f", score, p.MaxScore),
		}, true
	}
	return Outcome{}, false
}

func (p *Pipeline) similarityGate(ctx context.Context, log *slog.Logger, req Request, hash string) (Outcome, bool) {
	if p.Matcher == nil || p.Corpus == nil {
		return Outcome{}, false
	}

	candidate, err := p.Cache.Compute(req.FilePath)
	if err != nil {
		// Cannot fingerprint: not a duplicate by similarity.
		log.Warn("cannot fingerprint candidate, skipping similarity check", "error", err)
		return Outcome{}, false
	}
	corpus, err := p.Corpus(req)
	if err != nil {
		log.Warn("corpus unavailable, skipping similarity check", "error", err)
		return Outcome{}, false
	}

	match, err := p.Matcher.FindDuplicate(ctx, candidate, corpus)
	if err != nil {
		return Outcome{Kind: TransientFailure, ContentHash: hash, Reason: "similarity check aborted", Err: err}, true
	}
	if match != nil {
		log.Info("skipping: similar to published item", "matched", match.ID, "score", match.Score)
		return Outcome{
			Kind:        DuplicateSkipped,
			ContentHash: hash,
			Reason:      fmt.Sprintf("similar to %s (score %.2f)", match.ID, match.Score),
		}, true
	}
	return Outcome{}, false
}

// createWithRetry drives the creation call with an explicit attempt
// counter. Transient and rate-limit failures consume the retry budget
// after a jittered backoff; an auth-expired signal triggers one session
// refresh that does not count against the budget.
func (p *Pipeline) createWithRetry(ctx context.Context, req Request) (string, error) {
	createReq := marketplace.CreateRequest{
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		AssetKind:     req.AssetKind,
		DestinationID: req.DestinationID,
		FilePath:      req.FilePath,
		ExpectedPrice: req.Price,
	}

	attempts := p.Backoff.Attempts()
	refreshed := false
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		operationID, err := p.Client.CreateAsset(ctx, createReq)
		if err == nil {
			return operationID, nil
		}
		lastErr = err

		if errors.Is(err, marketplace.ErrAuthExpired) && !refreshed {
			refreshed = true
			p.logger().Warn("session token rejected, refreshing", "destination", req.DestinationID)
			if rerr := p.Auth.Refresh(ctx); rerr != nil {
				return "", fmt.Errorf("refresh session: %w", rerr)
			}
			attempt--
			continue
		}
		if !errors.Is(err, marketplace.ErrTransient) && !errors.Is(err, marketplace.ErrRateLimited) {
			return "", err
		}
		if attempt == attempts-1 {
			break
		}
		p.logger().Warn("creation attempt failed, backing off",
			"item", req.DisplayName, "attempt", attempt+1, "error", err)
		if serr := p.Backoff.sleep(ctx, attempt); serr != nil {
			return "", serr
		}
	}
	return "", lastErr
}

func (p *Pipeline) createOutcome(log *slog.Logger, hash string, err error) Outcome {
	switch {
	case errors.Is(err, marketplace.ErrInsufficientFunds):
		log.Error("rejected: insufficient funds")
		return Outcome{Kind: Rejected, ContentHash: hash, Cause: CauseInsufficientFunds, Reason: "insufficient funds", Err: err}
	case errors.Is(err, marketplace.ErrNoPermission):
		log.Error("rejected: no permission to publish to destination")
		return Outcome{Kind: Rejected, ContentHash: hash, Cause: CauseNoPermission, Reason: "no permission", Err: err}
	case errors.Is(err, marketplace.ErrModerated):
		log.Error("rejected: failed moderation")
		return Outcome{Kind: Rejected, ContentHash: hash, Cause: CauseModerated, Reason: "moderated", Err: err}
	case ctxErr(err):
		return Outcome{Kind: TransientFailure, ContentHash: hash, Reason: "cancelled", Err: err}
	default:
		log.Error("creation failed", "error", err)
		return Outcome{Kind: TransientFailure, ContentHash: hash, Reason: "creation failed", Err: err}
	}
}

// pollUntilDone polls the operation on a fixed interval. Poll failures
// count toward the attempt budget but never abort early; exhausting the
// budget is the polling-timeout failure.
func (p *Pipeline) pollUntilDone(ctx context.Context, operationID string) (string, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		result, err := p.Client.PollOperation(ctx, operationID)
		if err != nil {
			if ctxErr(err) {
				return "", err
			}
			p.logger().Debug("poll attempt failed",
				"operation", operationID, "attempt", attempt+1, "error", err)
			continue
		}
		if result.Done {
			if result.AssetID == "" {
				return "", fmt.Errorf("operation %s done without an asset id", operationID)
			}
			return result.AssetID, nil
		}
	}
	return "", fmt.Errorf("operation %s not done after %d poll attempts", operationID, attempts)
}

// releaseWithRetry submits the release. Only rate limiting retries (the
// client generates a fresh idempotency token per attempt); an
// auth-expired signal gets the one refresh; anything else is reported
// as-is for the operator.
func (p *Pipeline) releaseWithRetry(ctx context.Context, req Request, assetID string) error {
	releaseReq := marketplace.ReleaseRequest{
		AssetID:       assetID,
		DestinationID: req.DestinationID,
		Name:          req.DisplayName,
		Description:   req.Description,
		Price:         req.Price,
	}

	attempts := p.Backoff.Attempts()
	refreshed := false
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := p.Client.ReleaseAsset(ctx, releaseReq)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, marketplace.ErrAuthExpired) && !refreshed {
			refreshed = true
			p.logger().Warn("session token rejected during release, refreshing",
				"destination", req.DestinationID)
			if rerr := p.Auth.Refresh(ctx); rerr != nil {
				return fmt.Errorf("refresh session: %w", rerr)
			}
			attempt--
			continue
		}
		if !errors.Is(err, marketplace.ErrRateLimited) && !errors.Is(err, marketplace.ErrTransient) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if serr := p.Backoff.sleep(ctx, attempt); serr != nil {
			return serr
		}
	}
	return lastErr
}

func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
