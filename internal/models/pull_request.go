package models

import (
	"time"
)

// Pull request states as reported by the GitHub listing
const (
	PullRequestStateOpen   = "open"
	PullRequestStateClosed = "closed"
)

// PRCommit is one commit attached to a pull request
type PRCommit struct {
	Author     string    `json:"author"`
	CommitDate time.Time `json:"commit_date"`
	Additions  int       `json:"additions"`
	Deletions  int       `json:"deletions"`
	Title      string    `json:"title"`
}

// PRComment is one issue or review-thread comment on a pull request
type PRComment struct {
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
	Body   string    `json:"body"`
}

// CommitStats summarizes one side of the initial/rework commit split
type CommitStats struct {
	Count     int `json:"count"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// PullRequest represents one GitHub pull request together with its derived
// productivity metrics. Raw fields are populated by the detail fetch,
// derived fields by the metrics calculator. Once the remote state is closed
// the record is immutable and persisted permanently; later runs reuse it
// verbatim instead of recomputing.
type PullRequest struct {
	Repository string     `json:"repository"`
	Number     int        `json:"number"`
	Author     string     `json:"author"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	MergedAt   *time.Time `json:"merged_at"`
	Valid      bool       `json:"valid"`

	Additions    int         `json:"additions"`
	Deletions    int         `json:"deletions"`
	ChangedFiles int         `json:"changed_files"`
	Commits      []PRCommit  `json:"commits"`
	Comments     []PRComment `json:"comments"`

	Size                   int         `json:"size"`
	InitialCommits         CommitStats `json:"initial_commits"`
	ReworkCommits          CommitStats `json:"rework_commits"`
	CodingTime             int         `json:"coding_time"`
	Maturity               float64     `json:"maturity"`
	TitleMaturity          float64     `json:"title_maturity"`
	InitialCommitCreatedAt time.Time   `json:"initial_commit_created_at"`
	LastCommitCreatedAt    time.Time   `json:"last_commit_created_at"`

	LastProcessed time.Time `json:"last_processed"`
}

// NewPullRequest creates a pull request record as first seen in the listing,
// before the detail fetch has populated it
func NewPullRequest(repository string, number int, author string, createdAt time.Time, state string) *PullRequest {
	return &PullRequest{
		Repository: repository,
		Number:     number,
		Author:     author,
		CreatedAt:  createdAt,
		State:      state,
		Valid:      false,
	}
}

// IsMerged reports whether the pull request was merged
func (pr *PullRequest) IsMerged() bool {
	return pr.MergedAt != nil
}

// IsClosed reports whether the pull request reached its terminal state
func (pr *PullRequest) IsClosed() bool {
	return pr.State == PullRequestStateClosed
}
