package repositories

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/google/uuid"
)

type PullRequestRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewPullRequestRepository(db *sql.DB) *PullRequestRepository {
	return &PullRequestRepository{db: db}
}

// LoadClosed returns every persisted pull request for a repository, keyed by
// PR number. Only closed records are ever written, so everything loaded here
// is an immutable fact that later runs reuse verbatim.
func (r *PullRequestRepository) LoadClosed(repository string) (map[int]*models.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT repository, number, author, title, body, state, created_at, merged_at,
			valid, additions, deletions, changed_files, commits, comments, size,
			initial_commits_count, initial_commits_additions, initial_commits_deletions,
			rework_commits_count, rework_commits_additions, rework_commits_deletions,
			coding_time, maturity, title_maturity,
			initial_commit_created_at, last_commit_created_at, last_processed
		FROM pull_requests WHERE repository = ? AND state = ?
	`

	rows, err := r.db.Query(query, repository, models.PullRequestStateClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[int]*models.PullRequest)
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, err
		}
		records[pr.Number] = pr
	}

	return records, rows.Err()
}

// LoadAllClosed returns every persisted pull request across all
// repositories, ordered for export
func (r *PullRequestRepository) LoadAllClosed() ([]*models.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT repository, number, author, title, body, state, created_at, merged_at,
			valid, additions, deletions, changed_files, commits, comments, size,
			initial_commits_count, initial_commits_additions, initial_commits_deletions,
			rework_commits_count, rework_commits_additions, rework_commits_deletions,
			coding_time, maturity, title_maturity,
			initial_commit_created_at, last_commit_created_at, last_processed
		FROM pull_requests ORDER BY repository, number
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, pr)
	}

	return records, rows.Err()
}

// UpsertBatch persists a batch of finalized pull requests. Rows are keyed by
// (repository, number) so reflushing the same record is harmless.
func (r *PullRequestRepository) UpsertBatch(prs []*models.PullRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(prs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pull_requests (
			id, repository, number, author, title, body, state, created_at, merged_at,
			valid, additions, deletions, changed_files, commits, comments, size,
			initial_commits_count, initial_commits_additions, initial_commits_deletions,
			rework_commits_count, rework_commits_additions, rework_commits_deletions,
			coding_time, maturity, title_maturity,
			initial_commit_created_at, last_commit_created_at, last_processed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, number) DO UPDATE SET
			author = excluded.author,
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			created_at = excluded.created_at,
			merged_at = excluded.merged_at,
			valid = excluded.valid,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files,
			commits = excluded.commits,
			comments = excluded.comments,
			size = excluded.size,
			initial_commits_count = excluded.initial_commits_count,
			initial_commits_additions = excluded.initial_commits_additions,
			initial_commits_deletions = excluded.initial_commits_deletions,
			rework_commits_count = excluded.rework_commits_count,
			rework_commits_additions = excluded.rework_commits_additions,
			rework_commits_deletions = excluded.rework_commits_deletions,
			coding_time = excluded.coding_time,
			maturity = excluded.maturity,
			title_maturity = excluded.title_maturity,
			initial_commit_created_at = excluded.initial_commit_created_at,
			last_commit_created_at = excluded.last_commit_created_at,
			last_processed = excluded.last_processed
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, pr := range prs {
		commitsJSON, err := json.Marshal(pr.Commits)
		if err != nil {
			return err
		}
		commentsJSON, err := json.Marshal(pr.Comments)
		if err != nil {
			return err
		}

		_, err = stmt.Exec(
			uuid.New().String(), pr.Repository, pr.Number, pr.Author, pr.Title, pr.Body,
			pr.State, pr.CreatedAt, pr.MergedAt, pr.Valid, pr.Additions, pr.Deletions,
			pr.ChangedFiles, string(commitsJSON), string(commentsJSON), pr.Size,
			pr.InitialCommits.Count, pr.InitialCommits.Additions, pr.InitialCommits.Deletions,
			pr.ReworkCommits.Count, pr.ReworkCommits.Additions, pr.ReworkCommits.Deletions,
			pr.CodingTime, pr.Maturity, pr.TitleMaturity,
			nullableTime(pr.InitialCommitCreatedAt), nullableTime(pr.LastCommitCreatedAt),
			pr.LastProcessed,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanPullRequest(rows *sql.Rows) (*models.PullRequest, error) {
	var pr models.PullRequest
	var commitsJSON, commentsJSON string
	var initialCommitAt, lastCommitAt sql.NullTime

	err := rows.Scan(
		&pr.Repository, &pr.Number, &pr.Author, &pr.Title, &pr.Body, &pr.State,
		&pr.CreatedAt, &pr.MergedAt, &pr.Valid, &pr.Additions, &pr.Deletions,
		&pr.ChangedFiles, &commitsJSON, &commentsJSON, &pr.Size,
		&pr.InitialCommits.Count, &pr.InitialCommits.Additions, &pr.InitialCommits.Deletions,
		&pr.ReworkCommits.Count, &pr.ReworkCommits.Additions, &pr.ReworkCommits.Deletions,
		&pr.CodingTime, &pr.Maturity, &pr.TitleMaturity,
		&initialCommitAt, &lastCommitAt, &pr.LastProcessed,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(commitsJSON), &pr.Commits); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(commentsJSON), &pr.Comments); err != nil {
		return nil, err
	}
	if initialCommitAt.Valid {
		pr.InitialCommitCreatedAt = initialCommitAt.Time
	}
	if lastCommitAt.Valid {
		pr.LastCommitCreatedAt = lastCommitAt.Time
	}

	return &pr, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
