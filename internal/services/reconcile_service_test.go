package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

type fakeLister struct {
	pullRequests map[string][]*models.PullRequest
}

func (f *fakeLister) ListRepositories(ctx context.Context) ([]string, error) {
	var repos []string
	for repo := range f.pullRequests {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos, nil
}

func (f *fakeLister) ListPullRequests(ctx context.Context, repo string) ([]*models.PullRequest, error) {
	// Fresh copies, as a real listing would produce
	var listed []*models.PullRequest
	for _, pr := range f.pullRequests[repo] {
		c := *pr
		listed = append(listed, &c)
	}
	return listed, nil
}

type memoryPRStore struct {
	records map[string]map[int]*models.PullRequest
	flushes int
}

func newMemoryPRStore() *memoryPRStore {
	return &memoryPRStore{records: make(map[string]map[int]*models.PullRequest)}
}

func (s *memoryPRStore) LoadClosed(repository string) (map[int]*models.PullRequest, error) {
	loaded := make(map[int]*models.PullRequest)
	for number, pr := range s.records[repository] {
		c := *pr
		loaded[number] = &c
	}
	return loaded, nil
}

func (s *memoryPRStore) UpsertBatch(prs []*models.PullRequest) error {
	if len(prs) == 0 {
		return nil
	}
	s.flushes++
	for _, pr := range prs {
		if s.records[pr.Repository] == nil {
			s.records[pr.Repository] = make(map[int]*models.PullRequest)
		}
		c := *pr
		s.records[pr.Repository][pr.Number] = &c
	}
	return nil
}

func (s *memoryPRStore) count() int {
	total := 0
	for _, byNumber := range s.records {
		total += len(byNumber)
	}
	return total
}

type memoryAuthorStore struct {
	authors map[string]*models.Author
	saves   int
}

func newMemoryAuthorStore() *memoryAuthorStore {
	return &memoryAuthorStore{authors: make(map[string]*models.Author)}
}

func (s *memoryAuthorStore) LoadAll() (map[string]*models.Author, error) {
	loaded := make(map[string]*models.Author)
	for login, author := range s.authors {
		c := *author
		loaded[login] = &c
	}
	return loaded, nil
}

func (s *memoryAuthorStore) SaveAll(authors map[string]*models.Author) error {
	s.saves++
	s.authors = authors
	return nil
}

func listedPR(repo string, number int, author, state string, merged bool) *models.PullRequest {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := models.NewPullRequest(repo, number, author, createdAt.Add(time.Duration(number)*time.Hour), state)
	if merged {
		mergedAt := pr.CreatedAt.AddDate(0, 0, 1)
		pr.MergedAt = &mergedAt
	}
	return pr
}

func populateDetail(pr *models.PullRequest) error {
	pr.Title = "tidy up parser"
	populateCommits(pr, 40, 10, 2, 2)
	return nil
}

func newReconcileFixture(lister *fakeLister, fetchFn func(call int, pr *models.PullRequest) error, batchSize int) (*ReconcileService, *memoryPRStore, *memoryAuthorStore, *stubFetcher) {
	fetcher := &stubFetcher{fn: fetchFn}
	fetchService := NewFetchService(fetcher, config.DefaultThresholds())
	fetchService.sleep = func(time.Duration) {}

	prStore := newMemoryPRStore()
	authorStore := newMemoryAuthorStore()

	service := NewReconcileService(
		lister,
		fetchService,
		NewMetricsService(40),
		NewAuthorService(config.DefaultThresholds(), 40),
		prStore, authorStore, nil,
		windowStart, windowEnd, batchSize,
	)
	return service, prStore, authorStore, fetcher
}

func TestRunProcessesNewClosedPullRequests(t *testing.T) {
	outOfWindow := listedPR("alpha", 3, "alice", models.PullRequestStateClosed, true)
	outOfWindow.CreatedAt = windowStart.AddDate(-1, 0, 0)

	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{
		"alpha": {
			listedPR("alpha", 1, "alice", models.PullRequestStateClosed, true),
			listedPR("alpha", 2, "alice", models.PullRequestStateOpen, false),
			outOfWindow,
		},
	}}
	service, prStore, authorStore, fetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)

	require.NoError(t, service.Run(context.Background()))

	assert.Equal(t, 1, fetcher.calls, "open and out-of-window PRs are never fetched")
	assert.Equal(t, 1, prStore.count())
	require.Contains(t, prStore.records["alpha"], 1)
	stored := prStore.records["alpha"][1]
	assert.True(t, stored.Valid)
	assert.Equal(t, 50, stored.Size)

	require.Contains(t, authorStore.authors, "alice")
	assert.Equal(t, 1, authorStore.authors["alice"].TotalPRs)
	assert.Equal(t, 1, authorStore.authors["alice"].PRSize.Counts.Elite)
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{
		"alpha": {
			listedPR("alpha", 1, "alice", models.PullRequestStateClosed, true),
			listedPR("alpha", 2, "bob", models.PullRequestStateClosed, true),
		},
	}}
	service, prStore, authorStore, fetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)

	require.NoError(t, service.Run(context.Background()))
	assert.Equal(t, 2, fetcher.calls)

	// Same remote state again: everything is reused, nothing recomputed
	second, _, _, secondFetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)
	second.prStore = prStore
	second.authorStore = authorStore

	require.NoError(t, second.Run(context.Background()))

	assert.Equal(t, 0, secondFetcher.calls)
	assert.Equal(t, 2, prStore.count())
	assert.Equal(t, 1, authorStore.authors["alice"].TotalPRs)
	assert.Equal(t, 1, authorStore.authors["bob"].TotalPRs)
}

func TestRunProcessesOpenPullRequestOnceClosed(t *testing.T) {
	pr := listedPR("alpha", 1, "alice", models.PullRequestStateOpen, false)
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{"alpha": {pr}}}

	service, prStore, authorStore, fetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)

	require.NoError(t, service.Run(context.Background()))
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, prStore.count(), "an open PR is never persisted")

	// The PR closes and merges between runs
	pr.State = models.PullRequestStateClosed
	mergedAt := pr.CreatedAt.AddDate(0, 0, 2)
	pr.MergedAt = &mergedAt

	second, _, _, secondFetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)
	second.prStore = prStore
	second.authorStore = authorStore

	require.NoError(t, second.Run(context.Background()))

	assert.Equal(t, 1, secondFetcher.calls, "processed exactly once, at the open to closed transition")
	assert.Equal(t, 1, prStore.count())
	assert.Equal(t, 1, authorStore.authors["alice"].TotalPRs)
}

func TestRunRecordsInvalidWithoutAggregating(t *testing.T) {
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{
		"alpha": {listedPR("alpha", 1, "alice", models.PullRequestStateClosed, true)},
	}}
	service, prStore, authorStore, fetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		// Detail fetch succeeds but the PR has no commits
		pr.Additions = 50
		return nil
	}, 100)

	require.NoError(t, service.Run(context.Background()))

	require.Contains(t, prStore.records["alpha"], 1)
	assert.False(t, prStore.records["alpha"][1].Valid)
	assert.NotContains(t, authorStore.authors, "alice")

	// The invalid record is reused, not refetched
	second, _, _, secondFetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)
	second.prStore = prStore
	second.authorStore = authorStore

	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 0, secondFetcher.calls)
}

func TestRunFailedPullRequestRetriedNextRun(t *testing.T) {
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{
		"alpha": {listedPR("alpha", 1, "alice", models.PullRequestStateClosed, true)},
	}}
	service, prStore, authorStore, _ := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return rateLimitError(time.Now())
	}, 100)

	require.NoError(t, service.Run(context.Background()))

	assert.Equal(t, 0, prStore.count(), "a failed PR stays out of the store")
	assert.NotContains(t, authorStore.authors, "alice")

	// Rate limit recovered: the next run picks the PR up
	second, _, _, secondFetcher := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 100)
	second.prStore = prStore
	second.authorStore = authorStore

	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, 1, secondFetcher.calls)
	assert.Equal(t, 1, prStore.count())
}

func TestRunFlushesInBatches(t *testing.T) {
	prs := make([]*models.PullRequest, 0, 5)
	for number := 1; number <= 5; number++ {
		prs = append(prs, listedPR("alpha", number, "alice", models.PullRequestStateClosed, true))
	}
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{"alpha": prs}}

	service, prStore, _, _ := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		return populateDetail(pr)
	}, 2)

	require.NoError(t, service.Run(context.Background()))

	assert.Equal(t, 5, prStore.count())
	assert.Equal(t, 3, prStore.flushes, "two full batches plus the final partial flush")
}

func TestRunPermanentErrorAbortsRepositoryOnly(t *testing.T) {
	lister := &fakeLister{pullRequests: map[string][]*models.PullRequest{
		"alpha": {listedPR("alpha", 1, "alice", models.PullRequestStateClosed, true)},
		"beta":  {listedPR("beta", 1, "bob", models.PullRequestStateClosed, true)},
	}}
	service, prStore, authorStore, _ := newReconcileFixture(lister, func(call int, pr *models.PullRequest) error {
		if pr.Repository == "alpha" {
			return serverError(404)
		}
		return populateDetail(pr)
	}, 100)

	require.NoError(t, service.Run(context.Background()))

	assert.NotContains(t, prStore.records, "alpha")
	require.Contains(t, prStore.records, "beta")
	assert.Contains(t, authorStore.authors, "bob")
	assert.Equal(t, 1, authorStore.saves, "author state is saved even after a repository aborts")
}
