package services

import (
	"context"
	"net/http"
	"sort"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/logger"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubService wraps the GitHub API for one organization or user account.
// It lists repositories and pull requests and fetches per-PR detail; retry
// policy lives in FetchService, not here.
type GitHubService struct {
	client   *github.Client
	owner    string
	isOrg    bool
	pageSize int
}

func NewGitHubService(token, owner string, isOrg bool, pageSize int) *GitHubService {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &GitHubService{
		client:   github.NewClient(httpClient),
		owner:    owner,
		isOrg:    isOrg,
		pageSize: pageSize,
	}
}

// Owner returns the account whose repositories are processed
func (s *GitHubService) Owner() string {
	return s.owner
}

// ListRepositories returns the names of all repositories under the
// configured organization or user
func (s *GitHubService) ListRepositories(ctx context.Context) ([]string, error) {
	var names []string

	if s.isOrg {
		opts := &github.RepositoryListByOrgOptions{
			ListOptions: github.ListOptions{PerPage: s.pageSize},
		}
		for {
			repos, resp, err := s.client.Repositories.ListByOrg(ctx, s.owner, opts)
			if err != nil {
				return nil, err
			}
			for _, repo := range repos {
				names = append(names, repo.GetName())
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return names, nil
	}

	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: s.pageSize},
	}
	for {
		repos, resp, err := s.client.Repositories.ListByUser(ctx, s.owner, opts)
		if err != nil {
			return nil, err
		}
		for _, repo := range repos {
			names = append(names, repo.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// ListPullRequests returns every pull request of a repository in ascending
// creation order, populated only with listing-level facts
func (s *GitHubService) ListPullRequests(ctx context.Context, repo string) ([]*models.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:     "all",
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: s.pageSize,
		},
	}

	var pullRequests []*models.PullRequest
	for {
		prs, resp, err := s.client.PullRequests.List(ctx, s.owner, repo, opts)
		if err != nil {
			return nil, err
		}

		logger.WithFields(map[string]interface{}{
			"repository":           repo,
			"page":                 opts.Page,
			"rate_limit_remaining": resp.Rate.Remaining,
		}).Debugf("Listed %d pull requests", len(prs))

		for _, githubPR := range prs {
			pr := models.NewPullRequest(
				repo,
				githubPR.GetNumber(),
				githubPR.GetUser().GetLogin(),
				githubPR.GetCreatedAt().Time,
				githubPR.GetState(),
			)
			if githubPR.MergedAt != nil {
				pr.MergedAt = &githubPR.MergedAt.Time
			}
			pullRequests = append(pullRequests, pr)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return pullRequests, nil
}

// FetchDetail populates a pull request with its size fields, commits and
// comments (issue comments plus review-thread comments). Commits are sorted
// by commit date so the first and last entries bound the coding window.
func (s *GitHubService) FetchDetail(ctx context.Context, repo string, pr *models.PullRequest) error {
	githubPR, _, err := s.client.PullRequests.Get(ctx, s.owner, repo, pr.Number)
	if err != nil {
		return err
	}

	pr.Title = githubPR.GetTitle()
	pr.Body = githubPR.GetBody()
	pr.State = githubPR.GetState()
	pr.Additions = githubPR.GetAdditions()
	pr.Deletions = githubPR.GetDeletions()
	pr.ChangedFiles = githubPR.GetChangedFiles()
	if githubPR.MergedAt != nil {
		pr.MergedAt = &githubPR.MergedAt.Time
	}

	commits, err := s.fetchCommits(ctx, repo, pr.Number)
	if err != nil {
		return err
	}
	pr.Commits = commits

	comments, err := s.fetchComments(ctx, repo, pr.Number)
	if err != nil {
		return err
	}
	pr.Comments = comments

	return nil
}

func (s *GitHubService) fetchCommits(ctx context.Context, repo string, prNumber int) ([]models.PRCommit, error) {
	opts := &github.ListOptions{PerPage: s.pageSize}

	var commits []models.PRCommit
	for {
		repoCommits, resp, err := s.client.PullRequests.ListCommits(ctx, s.owner, repo, prNumber, opts)
		if err != nil {
			return nil, err
		}

		for _, repoCommit := range repoCommits {
			commit := models.PRCommit{
				Author:     repoCommit.GetAuthor().GetLogin(),
				CommitDate: repoCommit.GetCommit().GetAuthor().GetDate().Time,
				Title:      repoCommit.GetCommit().GetMessage(),
			}
			if commit.Author == "" {
				commit.Author = repoCommit.GetCommit().GetAuthor().GetName()
			}

			// The list endpoint omits diff stats, fetch them per commit
			detailed, _, err := s.client.Repositories.GetCommit(ctx, s.owner, repo, repoCommit.GetSHA(), nil)
			if err != nil {
				return nil, err
			}
			commit.Additions = detailed.GetStats().GetAdditions()
			commit.Deletions = detailed.GetStats().GetDeletions()

			commits = append(commits, commit)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].CommitDate.Before(commits[j].CommitDate)
	})

	return commits, nil
}

func (s *GitHubService) fetchComments(ctx context.Context, repo string, prNumber int) ([]models.PRComment, error) {
	var comments []models.PRComment

	issueOpts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: s.pageSize},
	}
	for {
		issueComments, resp, err := s.client.Issues.ListComments(ctx, s.owner, repo, prNumber, issueOpts)
		if err != nil {
			return nil, err
		}
		for _, comment := range issueComments {
			comments = append(comments, models.PRComment{
				Author: comment.GetUser().GetLogin(),
				Date:   comment.GetCreatedAt().Time,
				Body:   comment.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		issueOpts.Page = resp.NextPage
	}

	reviewOpts := &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: s.pageSize},
	}
	for {
		reviewComments, resp, err := s.client.PullRequests.ListComments(ctx, s.owner, repo, prNumber, reviewOpts)
		if err != nil {
			return nil, err
		}
		for _, comment := range reviewComments {
			comments = append(comments, models.PRComment{
				Author: comment.GetUser().GetLogin(),
				Date:   comment.GetCreatedAt().Time,
				Body:   comment.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		reviewOpts.Page = resp.NextPage
	}

	return comments, nil
}
