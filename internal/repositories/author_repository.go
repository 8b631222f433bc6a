package repositories

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/google/uuid"
)

type AuthorRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewAuthorRepository(db *sql.DB) *AuthorRepository {
	return &AuthorRepository{db: db}
}

// LoadAll returns every persisted author record keyed by login
func (r *AuthorRepository) LoadAll() (map[string]*models.Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT author, first_active_date, last_active_date,
			total_commits, total_prs, total_pr_comments_given, total_pr_reviews,
			coding_time, pr_size, pr_maturity, title_maturity,
			commit_message_maturity, comment_given_maturity
		FROM authors
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authors := make(map[string]*models.Author)
	for rows.Next() {
		var author models.Author
		var codingTime, prSize, prMaturity, titleMaturity, commitMessage, commentGiven string

		err := rows.Scan(
			&author.Author, &author.FirstActiveDate, &author.LastActiveDate,
			&author.TotalCommits, &author.TotalPRs, &author.TotalPRCommentsGiven,
			&author.TotalPRReviews, &codingTime, &prSize, &prMaturity,
			&titleMaturity, &commitMessage, &commentGiven,
		)
		if err != nil {
			return nil, err
		}

		buckets := []struct {
			raw    string
			target *models.MetricBuckets
		}{
			{codingTime, &author.CodingTime},
			{prSize, &author.PRSize},
			{prMaturity, &author.PRMaturity},
			{titleMaturity, &author.TitleMaturity},
			{commitMessage, &author.CommitMessageMaturity},
			{commentGiven, &author.CommentGivenMaturity},
		}
		for _, b := range buckets {
			if b.raw == "" || b.raw == "{}" {
				continue
			}
			if err := json.Unmarshal([]byte(b.raw), b.target); err != nil {
				return nil, err
			}
		}

		authors[author.Author] = &author
	}

	return authors, rows.Err()
}

// SaveAll rewrites the complete author dataset. Every run produces the full
// picture, so this is a full overwrite rather than an append.
func (r *AuthorRepository) SaveAll(authors map[string]*models.Author) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM authors`); err != nil {
		return err
	}

	query := `
		INSERT INTO authors (
			id, author, first_active_date, last_active_date,
			total_commits, total_prs, total_pr_comments_given, total_pr_reviews,
			coding_time, pr_size, pr_maturity, title_maturity,
			commit_message_maturity, comment_given_maturity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, author := range authors {
		fields := make([]string, 0, 6)
		for _, buckets := range []*models.MetricBuckets{
			&author.CodingTime, &author.PRSize, &author.PRMaturity,
			&author.TitleMaturity, &author.CommitMessageMaturity, &author.CommentGivenMaturity,
		} {
			raw, err := json.Marshal(buckets)
			if err != nil {
				return err
			}
			fields = append(fields, string(raw))
		}

		_, err = stmt.Exec(
			uuid.New().String(), author.Author, author.FirstActiveDate, author.LastActiveDate,
			author.TotalCommits, author.TotalPRs, author.TotalPRCommentsGiven, author.TotalPRReviews,
			fields[0], fields[1], fields[2], fields[3], fields[4], fields[5],
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
