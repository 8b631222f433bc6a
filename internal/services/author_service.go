package services

import (
	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/config"
)

// AuthorService folds finalized pull-request metrics into the running
// per-author records. It is the only writer of the authors map. Bucketed
// metrics are accumulated exclusively for merged pull requests: an abandoned
// PR is often recreated later with the same commits, and counting both would
// skew the buckets.
type AuthorService struct {
	thresholds     config.MetricThresholds
	maturityLength int
}

func NewAuthorService(thresholds config.MetricThresholds, maturityLength int) *AuthorService {
	return &AuthorService{
		thresholds:     thresholds,
		maturityLength: maturityLength,
	}
}

// FoldPullRequest updates the PR author's record, and via the PR's comments
// the records of everyone who reviewed it
func (s *AuthorService) FoldPullRequest(pr *models.PullRequest, authors map[string]*models.Author) {
	author := s.resolve(pr.Author, authors)

	author.TotalPRs++
	if !pr.InitialCommitCreatedAt.IsZero() {
		author.ExtendActiveSpan(pr.InitialCommitCreatedAt, pr.LastCommitCreatedAt)
	}

	if !pr.IsMerged() {
		return
	}

	author.CodingTime.Classify(float64(pr.CodingTime), s.thresholds.CodingTime, models.LowerIsBetter)
	author.PRSize.Classify(float64(pr.Size), s.thresholds.PRSize, models.LowerIsBetter)
	if pr.Maturity > 0 {
		author.PRMaturity.Classify(pr.Maturity, s.thresholds.PRMaturity, models.HigherIsBetter)
	}
	author.TitleMaturity.Classify(pr.TitleMaturity, s.thresholds.TitleMaturity, models.HigherIsBetter)

	for _, commit := range pr.Commits {
		if commit.Author != pr.Author {
			continue
		}
		score := models.TextMaturityScore(commit.Title, s.maturityLength)
		author.CommitMessageMaturity.Classify(score, s.thresholds.CommitMessage, models.HigherIsBetter)
		author.TotalCommits++
	}

	s.foldComments(pr, authors)
}

// foldComments attributes comment and review activity on this PR to the
// commenting authors. Every comment bumps the comment counter and buckets;
// the review counter is bumped once per distinct commenter per PR.
func (s *AuthorService) foldComments(pr *models.PullRequest, authors map[string]*models.Author) {
	reviewed := make(map[string]bool)

	for _, comment := range pr.Comments {
		if comment.Author == "" || comment.Author == pr.Author {
			continue
		}

		commenter := s.resolve(comment.Author, authors)
		commenter.TotalPRCommentsGiven++

		score := models.TextMaturityScore(comment.Body, s.maturityLength)
		commenter.CommentGivenMaturity.Classify(score, s.thresholds.CommentGiven, models.HigherIsBetter)

		if !reviewed[comment.Author] {
			reviewed[comment.Author] = true
			commenter.TotalPRReviews++
		}
	}
}

func (s *AuthorService) resolve(login string, authors map[string]*models.Author) *models.Author {
	if author, ok := authors[login]; ok {
		return author
	}
	author := models.NewAuthor(login)
	authors[login] = author
	return author
}
