package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ExportService writes a timestamped spreadsheet snapshot of the processed
// dataset, one sheet for authors and one for pull requests
type ExportService struct {
	exportPath string
}

func NewExportService(exportPath string) *ExportService {
	return &ExportService{exportPath: exportPath}
}

// Export writes the snapshot and returns the file path
func (s *ExportService) Export(authors map[string]*models.Author, pullRequests []*models.PullRequest) (string, error) {
	if err := os.MkdirAll(s.exportPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.writeAuthorsSheet(f, authors); err != nil {
		return "", err
	}
	if err := s.writePullRequestsSheet(f, pullRequests); err != nil {
		return "", err
	}

	// The default sheet is replaced by the two written above
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", err
	}

	path := filepath.Join(s.exportPath, fmt.Sprintf("prscope_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	logger.Infof("Exported %d authors and %d pull requests to %s", len(authors), len(pullRequests), path)
	return path, nil
}

func (s *ExportService) writeAuthorsSheet(f *excelize.File, authors map[string]*models.Author) error {
	const sheet = "Authors"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []interface{}{
		"Author", "First Active Date", "Last Active Date",
		"Total Commits", "Total PRs", "Total PR Comments Given", "Total PR Reviews",
	}
	for _, metric := range []string{"Coding Time", "PR Size", "PR Maturity", "Title Maturity", "Commit Message Maturity", "Comments Given Maturity"} {
		for _, tier := range []string{"Elite", "Good", "Fair", "Needs Focus"} {
			headers = append(headers, fmt.Sprintf("%s %s", metric, tier))
		}
		for _, tier := range []string{"Elite", "Good", "Fair", "Needs Focus"} {
			headers = append(headers, fmt.Sprintf("%s %% %s", metric, tier))
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	logins := make([]string, 0, len(authors))
	for login := range authors {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	for i, login := range logins {
		author := authors[login]
		row := []interface{}{
			author.Author,
			formatDate(author.FirstActiveDate),
			formatDate(author.LastActiveDate),
			author.TotalCommits,
			author.TotalPRs,
			author.TotalPRCommentsGiven,
			author.TotalPRReviews,
		}
		for _, buckets := range []models.MetricBuckets{
			author.CodingTime, author.PRSize, author.PRMaturity,
			author.TitleMaturity, author.CommitMessageMaturity, author.CommentGivenMaturity,
		} {
			row = append(row,
				buckets.Counts.Elite, buckets.Counts.Good, buckets.Counts.Fair, buckets.Counts.NeedsFocus,
				buckets.Percentages.Elite, buckets.Percentages.Good, buckets.Percentages.Fair, buckets.Percentages.NeedsFocus,
			)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

func (s *ExportService) writePullRequestsSheet(f *excelize.File, pullRequests []*models.PullRequest) error {
	const sheet = "Pull Requests"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []interface{}{
		"Repository", "PR Number", "Author", "Title", "State", "Created At", "Merged At", "Valid",
		"Size", "Additions", "Deletions", "Changed Files",
		"Initial Commits Count", "Initial Commit Additions", "Initial Commit Deletions",
		"Rework Commits Count", "Rework Commits Additions", "Rework Commits Deletions",
		"Coding Time", "Maturity", "Title Maturity",
		"Initial Commit Created At", "Last Commit Created At", "Last Processed",
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for i, pr := range pullRequests {
		row := []interface{}{
			pr.Repository, pr.Number, pr.Author, pr.Title, pr.State,
			pr.CreatedAt.Format(time.RFC3339), formatDate(pr.MergedAt), pr.Valid,
			pr.Size, pr.Additions, pr.Deletions, pr.ChangedFiles,
			pr.InitialCommits.Count, pr.InitialCommits.Additions, pr.InitialCommits.Deletions,
			pr.ReworkCommits.Count, pr.ReworkCommits.Additions, pr.ReworkCommits.Deletions,
			pr.CodingTime, pr.Maturity, pr.TitleMaturity,
			formatTime(pr.InitialCommitCreatedAt), formatTime(pr.LastCommitCreatedAt),
			pr.LastProcessed.Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
