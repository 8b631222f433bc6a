package services

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/alimgiray/prscope/pkg/logger"
)

// CloneService keeps local checkouts of processed repositories current.
// Purely a side effect for operators who want the sources on disk; metrics
// never read the working copy.
type CloneService struct {
	basePath string
	owner    string
	token    string
}

func NewCloneService(basePath, owner, token string) *CloneService {
	return &CloneService{
		basePath: basePath,
		owner:    owner,
		token:    token,
	}
}

// CloneOrUpdate clones the repository on first sight and pulls it afterwards
func (s *CloneService) CloneOrUpdate(repo string) error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	repoPath := filepath.Join(s.basePath, repo)
	if s.isRepositoryCloned(repoPath) {
		return s.pullRepository(repoPath, repo)
	}
	return s.cloneRepository(repoPath, repo)
}

// isRepositoryCloned checks if a repository is already cloned
func (s *CloneService) isRepositoryCloned(repoPath string) bool {
	gitDir := filepath.Join(repoPath, ".git")
	info, err := os.Stat(gitDir)
	return err == nil && info.IsDir()
}

func (s *CloneService) cloneRepository(repoPath, repo string) error {
	logger.Infof("Cloning repository %s/%s", s.owner, repo)

	cmd := exec.Command("git", "clone", s.cloneURL(repo), repoPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone failed: %s: %w", string(output), err)
	}
	return nil
}

func (s *CloneService) pullRepository(repoPath, repo string) error {
	logger.Debugf("Updating repository %s/%s", s.owner, repo)

	cmd := exec.Command("git", "pull")
	cmd.Dir = repoPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git pull failed: %s: %w", string(output), err)
	}
	return nil
}

func (s *CloneService) cloneURL(repo string) string {
	if s.token != "" {
		return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", s.token, s.owner, repo)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", s.owner, repo)
}
