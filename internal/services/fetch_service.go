package services

import (
	"context"
	"net/http"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/config"
	"github.com/alimgiray/prscope/pkg/logger"
	"github.com/google/go-github/v57/github"
)

// FetchState is the outcome of fetching one pull request's detail
type FetchState string

const (
	// FetchValid means the PR was fetched and passed the validity filters
	FetchValid FetchState = "valid"
	// FetchInvalid means the PR is degenerate (no commits, bulk change) and
	// must be recorded but never aggregated
	FetchInvalid FetchState = "invalid"
	// FetchFailed means the PR could not be fetched this run
	FetchFailed FetchState = "failed"
)

// FetchResult carries the fetch outcome and, for Invalid/Failed, the reason
type FetchResult struct {
	State  FetchState
	Reason string
}

// DetailFetcher is the slice of the GitHub client the orchestrator needs
type DetailFetcher interface {
	FetchDetail(ctx context.Context, repo string, pr *models.PullRequest) error
}

// FetchService wraps the per-PR detail fetch with bounded retries on rate
// limiting and server errors, and applies the validity filters that exclude
// degenerate pull requests from the metrics.
type FetchService struct {
	fetcher    DetailFetcher
	thresholds config.MetricThresholds

	maxAttempts     int
	serverRetryWait time.Duration
	now             func() time.Time
	sleep           func(time.Duration)
}

func NewFetchService(fetcher DetailFetcher, thresholds config.MetricThresholds) *FetchService {
	return &FetchService{
		fetcher:         fetcher,
		thresholds:      thresholds,
		maxAttempts:     3,
		serverRetryWait: 30 * time.Second,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// FetchPullRequest fetches one pull request's commits, comments and size
// fields. Rate limits are waited out until the reported reset, server errors
// are retried after a fixed pause, both within a shared attempt budget.
// Budget exhaustion yields a Failed result without an error so the caller
// leaves the PR out of the store and retries it on the next invocation.
// A non-nil error means a permanent failure for this PR.
func (s *FetchService) FetchPullRequest(ctx context.Context, pr *models.PullRequest) (FetchResult, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.fetcher.FetchDetail(ctx, pr.Repository, pr)
		if err == nil {
			return s.validate(pr), nil
		}

		wait, retryable := s.classify(err)
		if !retryable {
			return FetchResult{State: FetchFailed, Reason: err.Error()}, err
		}

		logger.WithFields(map[string]interface{}{
			"repository": pr.Repository,
			"pr_number":  pr.Number,
			"attempt":    attempt,
			"wait":       wait.String(),
		}).Warnf("Transient fetch error, retrying: %v", err)

		if attempt < s.maxAttempts {
			s.sleep(wait)
		}
	}

	return FetchResult{State: FetchFailed, Reason: "retry budget exhausted"}, nil
}

// classify maps a fetch error to a wait duration and whether it may be retried
func (s *FetchService) classify(err error) (time.Duration, bool) {
	if rateLimitErr, ok := err.(*github.RateLimitError); ok {
		wait := rateLimitErr.Rate.Reset.Time.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}

	if abuseErr, ok := err.(*github.AbuseRateLimitError); ok {
		wait := s.serverRetryWait
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		return wait, true
	}

	if respErr, ok := err.(*github.ErrorResponse); ok {
		if respErr.Response != nil && respErr.Response.StatusCode >= http.StatusInternalServerError {
			return s.serverRetryWait, true
		}
	}

	return 0, false
}

// validate applies the degenerate-PR filters in order and finalizes the
// commit window on valid pull requests
func (s *FetchService) validate(pr *models.PullRequest) FetchResult {
	if len(pr.Commits) == 0 {
		return FetchResult{State: FetchInvalid, Reason: "no commits"}
	}

	size := pr.Additions + pr.Deletions
	if size > s.thresholds.MaxBulkPRSize && pr.ChangedFiles > s.thresholds.MaxBulkPRFiles {
		return FetchResult{State: FetchInvalid, Reason: "bulk change across many files"}
	}
	if size > s.thresholds.MaxPRSize {
		return FetchResult{State: FetchInvalid, Reason: "oversized diff"}
	}

	pr.Valid = true
	pr.InitialCommitCreatedAt = pr.Commits[0].CommitDate
	pr.LastCommitCreatedAt = pr.Commits[len(pr.Commits)-1].CommitDate

	return FetchResult{State: FetchValid}
}
