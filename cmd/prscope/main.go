package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alimgiray/prscope/internal/models"
	"github.com/alimgiray/prscope/internal/repositories"
	"github.com/alimgiray/prscope/internal/services"
	"github.com/alimgiray/prscope/pkg/config"
	"github.com/alimgiray/prscope/pkg/database"
	"github.com/alimgiray/prscope/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "prscope",
	Short: "Pull request productivity metrics",
	Long:  `prscope ingests pull-request activity from GitHub and derives per-PR and per-author productivity metrics, persisting them incrementally so repeated runs only process new work.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental metrics pass over all configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		owner := cfg.GitHub.OrgName
		isOrg := owner != ""
		if !isOrg {
			owner = cfg.GitHub.UserName
		}

		githubService := services.NewGitHubService(cfg.GitHub.Token, owner, isOrg, cfg.GitHub.PageSize)
		fetchService := services.NewFetchService(githubService, config.DefaultThresholds())
		metricsService := services.NewMetricsService(cfg.Metrics.TitleMaturityLength)
		authorService := services.NewAuthorService(config.DefaultThresholds(), cfg.Metrics.MaturityLength)
		cloneService := services.NewCloneService(cfg.Output.ClonePath, owner, cfg.GitHub.Token)

		prRepo := repositories.NewPullRequestRepository(database.DB)
		authorRepo := repositories.NewAuthorRepository(database.DB)

		var lister services.PullRequestLister = githubService
		if cfg.GitHub.RepoName != "" {
			lister = &singleRepoLister{inner: githubService, repo: cfg.GitHub.RepoName}
		}

		reconcileService := services.NewReconcileService(
			lister, fetchService, metricsService, authorService,
			prRepo, authorRepo, cloneService,
			cfg.Metrics.StartDate, cfg.Metrics.EndDate, cfg.GitHub.PageSize,
		)

		return reconcileService.Run(context.Background())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a spreadsheet snapshot of the processed dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		prRepo := repositories.NewPullRequestRepository(database.DB)
		authorRepo := repositories.NewAuthorRepository(database.DB)

		authors, err := authorRepo.LoadAll()
		if err != nil {
			return err
		}
		pullRequests, err := prRepo.LoadAllClosed()
		if err != nil {
			return err
		}

		exportService := services.NewExportService(cfg.Output.ExportPath)
		path, err := exportService.Export(authors, pullRequests)
		if err != nil {
			return err
		}

		fmt.Println(path)
		return nil
	},
}

// singleRepoLister narrows the repository listing to the configured repository
type singleRepoLister struct {
	inner *services.GitHubService
	repo  string
}

func (l *singleRepoLister) ListRepositories(ctx context.Context) ([]string, error) {
	return []string{l.repo}, nil
}

func (l *singleRepoLister) ListPullRequests(ctx context.Context, repo string) ([]*models.PullRequest, error) {
	return l.inner.ListPullRequests(ctx, repo)
}

func bootstrap() (*config.Config, func(), error) {
	if err := config.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init()

	if err := database.Init(config.AppConfig.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return config.AppConfig, func() { database.Close() }, nil
}

func main() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
