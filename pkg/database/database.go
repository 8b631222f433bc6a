package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// Init initializes the SQLite database connection
func Init(path string) error {
	var err error

	// Open SQLite database (creates if doesn't exist)
	DB, err = sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=30000", path))
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(time.Hour)

	if err = DB.Ping(); err != nil {
		return err
	}

	if err = optimizeDatabase(); err != nil {
		return err
	}

	log.Println("Database connected successfully with WAL mode")

	return createSchema()
}

// optimizeDatabase configures SQLite for optimal performance
func optimizeDatabase() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=30000",
	}

	for _, pragma := range pragmas {
		if _, err := DB.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

func createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pull_requests (
		id TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		number INTEGER NOT NULL,
		author TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		merged_at DATETIME,
		valid INTEGER NOT NULL DEFAULT 0,
		additions INTEGER NOT NULL DEFAULT 0,
		deletions INTEGER NOT NULL DEFAULT 0,
		changed_files INTEGER NOT NULL DEFAULT 0,
		commits TEXT NOT NULL DEFAULT '[]',
		comments TEXT NOT NULL DEFAULT '[]',
		size INTEGER NOT NULL DEFAULT 0,
		initial_commits_count INTEGER NOT NULL DEFAULT 0,
		initial_commits_additions INTEGER NOT NULL DEFAULT 0,
		initial_commits_deletions INTEGER NOT NULL DEFAULT 0,
		rework_commits_count INTEGER NOT NULL DEFAULT 0,
		rework_commits_additions INTEGER NOT NULL DEFAULT 0,
		rework_commits_deletions INTEGER NOT NULL DEFAULT 0,
		coding_time INTEGER NOT NULL DEFAULT 0,
		maturity REAL NOT NULL DEFAULT 0,
		title_maturity REAL NOT NULL DEFAULT 0,
		initial_commit_created_at DATETIME,
		last_commit_created_at DATETIME,
		last_processed DATETIME NOT NULL,
		UNIQUE(repository, number)
	);

	CREATE INDEX IF NOT EXISTS idx_pull_requests_repository ON pull_requests(repository);

	CREATE TABLE IF NOT EXISTS authors (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL UNIQUE,
		first_active_date DATETIME,
		last_active_date DATETIME,
		total_commits INTEGER NOT NULL DEFAULT 0,
		total_prs INTEGER NOT NULL DEFAULT 0,
		total_pr_comments_given INTEGER NOT NULL DEFAULT 0,
		total_pr_reviews INTEGER NOT NULL DEFAULT 0,
		coding_time TEXT NOT NULL DEFAULT '{}',
		pr_size TEXT NOT NULL DEFAULT '{}',
		pr_maturity TEXT NOT NULL DEFAULT '{}',
		title_maturity TEXT NOT NULL DEFAULT '{}',
		commit_message_maturity TEXT NOT NULL DEFAULT '{}',
		comment_given_maturity TEXT NOT NULL DEFAULT '{}'
	);
	`

	_, err := DB.Exec(schema)
	return err
}
