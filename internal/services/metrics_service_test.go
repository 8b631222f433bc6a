package services

import (
	"testing"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/stretchr/testify/assert"
)

func newTestPullRequest(createdAt time.Time, commits []models.PRCommit) *models.PullRequest {
	pr := models.NewPullRequest("test-repo", 1, "alice", createdAt, models.PullRequestStateClosed)
	pr.Commits = commits
	if len(commits) > 0 {
		pr.InitialCommitCreatedAt = commits[0].CommitDate
		pr.LastCommitCreatedAt = commits[len(commits)-1].CommitDate
	}
	return pr
}

func TestComputeInitialReworkSplit(t *testing.T) {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newTestPullRequest(createdAt, []models.PRCommit{
		{Author: "alice", CommitDate: createdAt.AddDate(0, 0, -1), Additions: 50, Deletions: 0},
		{Author: "alice", CommitDate: createdAt.AddDate(0, 0, 1), Additions: 10, Deletions: 5},
	})
	pr.Additions = 60
	pr.Deletions = 5

	service := NewMetricsService(40)
	service.Compute(pr)

	assert.Equal(t, models.CommitStats{Count: 1, Additions: 50, Deletions: 0}, pr.InitialCommits)
	assert.Equal(t, models.CommitStats{Count: 1, Additions: 10, Deletions: 5}, pr.ReworkCommits)
	assert.Equal(t, 65, pr.Size)
}

func TestComputeCommitAtCreationIsRework(t *testing.T) {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newTestPullRequest(createdAt, []models.PRCommit{
		{Author: "alice", CommitDate: createdAt, Additions: 20, Deletions: 3},
	})

	service := NewMetricsService(40)
	service.Compute(pr)

	assert.Equal(t, 0, pr.InitialCommits.Count, "a commit exactly at creation is not initial work")
	assert.Equal(t, 1, pr.ReworkCommits.Count)
}

func TestComputeCodingTime(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name            string
		createdAt       time.Time
		firstCommit     time.Time
		lastCommit      time.Time
		expectedMinutes int
	}{
		{
			name:            "Commits continue after PR creation",
			createdAt:       base,
			firstCommit:     base.Add(-2 * time.Hour),
			lastCommit:      base.Add(90 * time.Minute),
			expectedMinutes: 210,
		},
		{
			name:            "All commits before PR creation",
			createdAt:       base,
			firstCommit:     base.Add(-3 * time.Hour),
			lastCommit:      base.Add(-1 * time.Hour),
			expectedMinutes: 180,
		},
		{
			name:            "Single commit right before creation",
			createdAt:       base,
			firstCommit:     base.Add(-30 * time.Minute),
			lastCommit:      base.Add(-30 * time.Minute),
			expectedMinutes: 30,
		},
		{
			name:            "Sub-minute window rounds to nearest minute",
			createdAt:       base,
			firstCommit:     base.Add(-90 * time.Second),
			lastCommit:      base.Add(-90 * time.Second),
			expectedMinutes: 2,
		},
	}

	service := NewMetricsService(40)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pr := newTestPullRequest(tc.createdAt, []models.PRCommit{
				{CommitDate: tc.firstCommit, Additions: 10},
				{CommitDate: tc.lastCommit, Additions: 10},
			})
			service.Compute(pr)

			assert.Equal(t, tc.expectedMinutes, pr.CodingTime)
		})
	}
}

func TestComputeMaturity(t *testing.T) {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		additions  int
		deletions  int
		reworkAdds int
		reworkDels int
		expected   float64
	}{
		{
			name:      "Size of ten is too small to be meaningful",
			additions: 10,
			expected:  0,
		},
		{
			name:      "Size of eleven with no rework is fully mature",
			additions: 11,
			expected:  100,
		},
		{
			name:       "Half rework halves maturity",
			additions:  100,
			reworkAdds: 50,
			expected:   50,
		},
		{
			name:       "All rework floor-clamps at ten",
			additions:  100,
			reworkAdds: 100,
			expected:   10,
		},
	}

	service := NewMetricsService(40)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			commits := []models.PRCommit{
				{CommitDate: createdAt.Add(-time.Hour), Additions: tc.additions - tc.reworkAdds, Deletions: tc.deletions - tc.reworkDels},
			}
			if tc.reworkAdds > 0 || tc.reworkDels > 0 {
				commits = append(commits, models.PRCommit{
					CommitDate: createdAt.Add(time.Hour),
					Additions:  tc.reworkAdds,
					Deletions:  tc.reworkDels,
				})
			}
			pr := newTestPullRequest(createdAt, commits)
			pr.Additions = tc.additions
			pr.Deletions = tc.deletions

			service.Compute(pr)

			assert.Equal(t, tc.expected, pr.Maturity)
		})
	}
}

func TestComputeTitleMaturity(t *testing.T) {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewMetricsService(40)

	testCases := []struct {
		name     string
		title    string
		body     string
		expected float64
	}{
		{
			name:     "Empty title and body scores full",
			expected: 100,
		},
		{
			name:     "Twenty characters scores half",
			title:    "fix the login check!",
			expected: 50,
		},
		{
			name:     "Over-length text floor-clamps at ten",
			title:    "a very long and painstakingly detailed pull request title",
			body:     "with an even longer body attached to it",
			expected: 10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pr := newTestPullRequest(createdAt, []models.PRCommit{
				{CommitDate: createdAt.Add(-time.Hour), Additions: 5},
			})
			pr.Title = tc.title
			pr.Body = tc.body

			service.Compute(pr)

			assert.Equal(t, tc.expected, pr.TitleMaturity)
		})
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	createdAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pr := newTestPullRequest(createdAt, []models.PRCommit{
		{CommitDate: createdAt.Add(-2 * time.Hour), Additions: 40, Deletions: 10},
		{CommitDate: createdAt.Add(time.Hour), Additions: 10, Deletions: 10},
	})
	pr.Additions = 50
	pr.Deletions = 20
	pr.Title = "fix parser"

	service := NewMetricsService(40)
	service.Compute(pr)

	size, codingTime, maturity, titleMaturity := pr.Size, pr.CodingTime, pr.Maturity, pr.TitleMaturity
	initial, rework := pr.InitialCommits, pr.ReworkCommits

	service.Compute(pr)

	assert.Equal(t, size, pr.Size)
	assert.Equal(t, codingTime, pr.CodingTime)
	assert.Equal(t, maturity, pr.Maturity)
	assert.Equal(t, titleMaturity, pr.TitleMaturity)
	assert.Equal(t, initial, pr.InitialCommits)
	assert.Equal(t, rework, pr.ReworkCommits)
}
