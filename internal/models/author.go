package models

import (
	"time"
)

// Author is the rolling per-login aggregate built from every pull request a
// person authored plus every comment or review they gave on someone else's.
// One record exists per login across all repositories and it persists
// across runs; the aggregator is its only writer.
type Author struct {
	Author          string     `json:"author"`
	FirstActiveDate *time.Time `json:"first_active_date"`
	LastActiveDate  *time.Time `json:"last_active_date"`

	TotalCommits         int `json:"total_commits"`
	TotalPRs             int `json:"total_prs"`
	TotalPRCommentsGiven int `json:"total_pr_comments_given"`
	TotalPRReviews       int `json:"total_pr_reviews"`

	CodingTime            MetricBuckets `json:"coding_time"`
	PRSize                MetricBuckets `json:"pr_size"`
	PRMaturity            MetricBuckets `json:"pr_maturity"`
	TitleMaturity         MetricBuckets `json:"title_maturity"`
	CommitMessageMaturity MetricBuckets `json:"commit_message_maturity"`
	CommentGivenMaturity  MetricBuckets `json:"comment_given_maturity"`
}

// NewAuthor creates an empty author record for a login
func NewAuthor(login string) *Author {
	return &Author{
		Author: login,
	}
}

// ExtendActiveSpan widens the first/last active dates to include the given range
func (a *Author) ExtendActiveSpan(first, last time.Time) {
	if a.FirstActiveDate == nil || first.Before(*a.FirstActiveDate) {
		firstCopy := first
		a.FirstActiveDate = &firstCopy
	}
	if a.LastActiveDate == nil || last.After(*a.LastActiveDate) {
		lastCopy := last
		a.LastActiveDate = &lastCopy
	}
}
