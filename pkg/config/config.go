package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GitHub   GitHubConfig
	Database DatabaseConfig
	Output   OutputConfig
	Metrics  MetricsConfig
}

type GitHubConfig struct {
	Token    string
	OrgName  string
	UserName string
	RepoName string
	PageSize int
}

type DatabaseConfig struct {
	Path string
}

type OutputConfig struct {
	ClonePath  string
	ExportPath string
}

type MetricsConfig struct {
	StartDate           time.Time
	EndDate             time.Time
	TitleMaturityLength int
	MaturityLength      int
}

// MetricThresholds holds the bucket boundaries for every classified metric.
// Passed explicitly into the aggregator rather than read from process state.
type MetricThresholds struct {
	CodingTime     [3]float64 // minutes, lower is better
	PRSize         [3]float64 // changed lines, lower is better
	PRMaturity     [3]float64 // percent, higher is better
	TitleMaturity  [3]float64 // percent, higher is better
	CommentGiven   [3]float64 // percent, higher is better
	CommitMessage  [3]float64 // percent, higher is better
	MaxPRSize      int        // above this the PR is excluded outright
	MaxBulkPRSize  int        // above this with many files the PR is excluded
	MaxBulkPRFiles int
}

// DefaultThresholds returns the standard bucket boundaries
func DefaultThresholds() MetricThresholds {
	return MetricThresholds{
		CodingTime:     [3]float64{30, 150, 1440},
		PRSize:         [3]float64{98, 148, 218},
		PRMaturity:     [3]float64{91, 84, 77},
		TitleMaturity:  [3]float64{75, 50, 25},
		CommentGiven:   [3]float64{75, 50, 25},
		CommitMessage:  [3]float64{75, 50, 25},
		MaxPRSize:      2000,
		MaxBulkPRSize:  1000,
		MaxBulkPRFiles: 5,
	}
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	startDate, err := parseDate("START_DATE")
	if err != nil {
		return err
	}

	endDate := time.Now()
	if os.Getenv("END_DATE") != "" {
		endDate, err = parseDate("END_DATE")
		if err != nil {
			return err
		}
	}

	AppConfig = &Config{
		GitHub: GitHubConfig{
			Token:    getEnv("GITHUB_TOKEN", ""),
			OrgName:  getEnv("ORG_NAME", ""),
			UserName: getEnv("USER_NAME", ""),
			RepoName: getEnv("REPO_NAME", ""),
			PageSize: getEnvAsInt("PAGE_SIZE", 100),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./prscope.db"),
		},
		Output: OutputConfig{
			ClonePath:  getEnv("CLONE_PATH", "./repos"),
			ExportPath: getEnv("EXPORT_PATH", "./exports"),
		},
		Metrics: MetricsConfig{
			StartDate:           startDate,
			EndDate:             endDate,
			TitleMaturityLength: getEnvAsInt("PR_TITLE_MATURITY_LENGTH", 40),
			MaturityLength:      getEnvAsInt("COMMENT_MATURITY_LENGTH", 40),
		},
	}

	return AppConfig.Validate()
}

// Validate checks the selection criteria before any processing starts
func (c *Config) Validate() error {
	if c.Metrics.StartDate.IsZero() {
		return errors.New("START_DATE must be set")
	}
	if c.GitHub.OrgName == "" && c.GitHub.UserName == "" {
		return errors.New("one of ORG_NAME or USER_NAME must be set")
	}
	if c.GitHub.OrgName != "" && c.GitHub.UserName != "" {
		return errors.New("ORG_NAME and USER_NAME are mutually exclusive")
	}
	return nil
}

func parseDate(key string) (time.Time, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s must be set", key)
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date: %w", key, err)
	}
	return parsed, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
