package services

import (
	"math"

	"github.com/alimgiray/prscope/internal/models"
)

// A pull request must change more than this many lines before its maturity
// is considered meaningful
const minMeaningfulSize = 10

// MetricsService derives all per-PR numeric metrics from a populated pull
// request record. Compute is idempotent: recomputing finalized data yields
// identical results.
type MetricsService struct {
	titleMaturityLength int
}

func NewMetricsService(titleMaturityLength int) *MetricsService {
	return &MetricsService{titleMaturityLength: titleMaturityLength}
}

// Compute mutates pr in place. The caller must have filtered out pull
// requests without commits and established dated commit order beforehand.
func (s *MetricsService) Compute(pr *models.PullRequest) {
	pr.InitialCommits = models.CommitStats{}
	pr.ReworkCommits = models.CommitStats{}

	for _, commit := range pr.Commits {
		// A commit strictly before PR creation is initial work, everything
		// at or after creation is review-driven rework
		if commit.CommitDate.Before(pr.CreatedAt) {
			pr.InitialCommits.Count++
			pr.InitialCommits.Additions += commit.Additions
			pr.InitialCommits.Deletions += commit.Deletions
		} else {
			pr.ReworkCommits.Count++
			pr.ReworkCommits.Additions += commit.Additions
			pr.ReworkCommits.Deletions += commit.Deletions
		}
	}

	// PR-level additions/deletions are the source of truth for size; the
	// commit list may be incomplete after history rewrites
	pr.Size = pr.Additions + pr.Deletions

	pr.CodingTime = s.codingTime(pr)
	pr.TitleMaturity = s.titleMaturity(pr)
	pr.Maturity = s.maturity(pr)
}

// codingTime measures minutes from the first commit to the last commit, or
// to PR submission when all commits predate it. Post-submission commits
// extend the window, they are never excluded.
func (s *MetricsService) codingTime(pr *models.PullRequest) int {
	until := pr.CreatedAt
	if pr.CreatedAt.Before(pr.LastCommitCreatedAt) {
		until = pr.LastCommitCreatedAt
	}
	return int(math.Round(until.Sub(pr.InitialCommitCreatedAt).Minutes()))
}

// titleMaturity scores how concise the title and body are, floor-clamped at
// 0.1 before scaling to a percentage
func (s *MetricsService) titleMaturity(pr *models.PullRequest) float64 {
	ratio := 1 - float64(len(pr.Title)+len(pr.Body))/float64(s.titleMaturityLength)
	return roundTwoDecimals(math.Max(0.1, ratio)) * 100
}

// maturity measures how much of the final diff existed before rework began.
// Too-small PRs are left at 0 so they never enter maturity buckets.
func (s *MetricsService) maturity(pr *models.PullRequest) float64 {
	if pr.Size <= minMeaningfulSize {
		return 0
	}
	rework := float64(pr.ReworkCommits.Additions + pr.ReworkCommits.Deletions)
	ratio := 1 - rework/float64(pr.Size)
	return roundTwoDecimals(math.Max(0.1, ratio)) * 100
}

func roundTwoDecimals(value float64) float64 {
	return math.Round(value*100) / 100
}
