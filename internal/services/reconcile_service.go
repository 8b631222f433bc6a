package services

import (
	"context"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/logger"
)

// PullRequestLister is the slice of the GitHub client the reconciler needs
type PullRequestLister interface {
	ListRepositories(ctx context.Context) ([]string, error)
	ListPullRequests(ctx context.Context, repo string) ([]*models.PullRequest, error)
}

// PullRequestStore persists finalized closed pull requests
type PullRequestStore interface {
	LoadClosed(repository string) (map[int]*models.PullRequest, error)
	UpsertBatch(prs []*models.PullRequest) error
}

// AuthorStore persists the full author dataset with overwrite semantics
type AuthorStore interface {
	LoadAll() (map[string]*models.Author, error)
	SaveAll(authors map[string]*models.Author) error
}

// WorkingCopyManager keeps a local checkout of each repository current
type WorkingCopyManager interface {
	CloneOrUpdate(repo string) error
}

// ReconcileService drives one incremental run: per repository it decides for
// every listed pull request whether to reuse the persisted result, skip it
// (still open), or fetch and compute it, guaranteeing exactly-once metric
// accumulation per pull request lifecycle.
type ReconcileService struct {
	lister         PullRequestLister
	fetchService   *FetchService
	metricsService *MetricsService
	authorService  *AuthorService
	prStore        PullRequestStore
	authorStore    AuthorStore
	workingCopies  WorkingCopyManager

	startDate time.Time
	endDate   time.Time
	batchSize int
	now       func() time.Time
}

func NewReconcileService(
	lister PullRequestLister,
	fetchService *FetchService,
	metricsService *MetricsService,
	authorService *AuthorService,
	prStore PullRequestStore,
	authorStore AuthorStore,
	workingCopies WorkingCopyManager,
	startDate, endDate time.Time,
	batchSize int,
) *ReconcileService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileService{
		lister:         lister,
		fetchService:   fetchService,
		metricsService: metricsService,
		authorService:  authorService,
		prStore:        prStore,
		authorStore:    authorStore,
		workingCopies:  workingCopies,
		startDate:      startDate,
		endDate:        endDate,
		batchSize:      batchSize,
		now:            time.Now,
	}
}

// Run processes every repository sequentially and saves the updated author
// dataset at the end. A repository that fails permanently is logged and the
// run continues with the next one.
func (s *ReconcileService) Run(ctx context.Context) error {
	authors, err := s.authorStore.LoadAll()
	if err != nil {
		return err
	}

	repos, err := s.lister.ListRepositories(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if err := s.processRepository(ctx, repo, authors); err != nil {
			logger.WithFields(map[string]interface{}{
				"repository": repo,
			}).Errorf("Aborting repository after permanent error: %v", err)
		}
	}

	return s.authorStore.SaveAll(authors)
}

// processRepository reconciles one repository against its persisted history.
// Newly processed pull requests are flushed in batches so a crash loses at
// most one unflushed batch.
func (s *ReconcileService) processRepository(ctx context.Context, repo string, authors map[string]*models.Author) error {
	historical, err := s.prStore.LoadClosed(repo)
	if err != nil {
		return err
	}

	if s.workingCopies != nil {
		if err := s.workingCopies.CloneOrUpdate(repo); err != nil {
			logger.WithFields(map[string]interface{}{
				"repository": repo,
			}).Warnf("Failed to update working copy: %v", err)
		}
	}

	listed, err := s.lister.ListPullRequests(ctx, repo)
	if err != nil {
		return err
	}

	var batch []*models.PullRequest
	processed, reused, skipped := 0, 0, 0

	for _, pr := range listed {
		if _, ok := historical[pr.Number]; ok {
			// Closed PRs are immutable facts, the persisted result stands
			reused++
			continue
		}

		if !pr.IsClosed() {
			// Still open, reprocessed exactly once at the open->closed transition
			skipped++
			continue
		}

		if pr.CreatedAt.Before(s.startDate) || pr.CreatedAt.After(s.endDate) {
			skipped++
			continue
		}

		result, err := s.fetchService.FetchPullRequest(ctx, pr)
		if err != nil {
			if flushErr := s.prStore.UpsertBatch(batch); flushErr != nil {
				logger.WithFields(map[string]interface{}{
					"repository": repo,
				}).Errorf("Failed to flush batch: %v", flushErr)
			}
			return err
		}

		switch result.State {
		case FetchValid:
			pr.LastProcessed = s.now()
			s.metricsService.Compute(pr)
			s.authorService.FoldPullRequest(pr, authors)
			batch = append(batch, pr)
			processed++
		case FetchInvalid:
			// Recorded so it is never refetched, but kept out of aggregation
			pr.Valid = false
			pr.LastProcessed = s.now()
			batch = append(batch, pr)
			processed++
			logger.WithFields(map[string]interface{}{
				"repository": repo,
				"pr_number":  pr.Number,
			}).Infof("Excluding pull request: %s", result.Reason)
		case FetchFailed:
			// Stays out of the store, the next run retries it
			logger.WithFields(map[string]interface{}{
				"repository": repo,
				"pr_number":  pr.Number,
			}).Warnf("Pull request unprocessed this run: %s", result.Reason)
		}

		if len(batch) >= s.batchSize {
			if err := s.prStore.UpsertBatch(batch); err != nil {
				return err
			}
			batch = nil
		}
	}

	if err := s.prStore.UpsertBatch(batch); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repository": repo,
		"processed":  processed,
		"reused":     reused,
		"skipped":    skipped,
	}).Info("Repository reconciled")

	return nil
}
