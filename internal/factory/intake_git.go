package factory

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"snowpilot/internal/logger"
	"snowpilot/pkg/errors"
)

// SyncGit clones or updates the configured request repository and queues
// any valid specs it finds under the configured path. Returns the number
// of requests queued.
func (f *Factory) SyncGit(ctx context.Context) (int, error) {
	cfg := f.cfg.Git
	if cfg.URL == "" {
		return 0, errors.New(errors.ErrCodeConfigMissing, "No pipeline request repository configured").
			WithSuggestions("Set pipeline.git.url in the config file")
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeIntakeSyncFailed, "Cannot determine home directory")
		}
		localPath = filepath.Join(home, ".snowpilot", "pipelines")
	}

	err := errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if err := cloneOrPull(ctx, cfg.URL, cfg.Branch, localPath); err != nil {
			msg := err.Error()
			if strings.Contains(msg, "connection") ||
				strings.Contains(msg, "timeout") ||
				strings.Contains(msg, "unreachable") {
				return errors.Wrap(err, errors.ErrCodeIntakeSyncFailed, "Network error while syncing request repository").
					WithContext("url", cfg.URL).
					AsRecoverable()
			}
			if strings.Contains(msg, "authentication") || strings.Contains(msg, "authorization") {
				return errors.Wrap(err, errors.ErrCodeIntakeSyncFailed, "Authentication failed for request repository").
					WithContext("url", cfg.URL).
					WithSuggestions(
						"Check your Git credentials",
						"Set GIT_USERNAME/GIT_PASSWORD or GITHUB_TOKEN for HTTPS remotes",
					)
			}
			return errors.Wrap(err, errors.ErrCodeIntakeSyncFailed, "Failed to sync request repository").
				WithContext("url", cfg.URL)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	specDir := localPath
	if cfg.Path != "" {
		specDir = filepath.Join(localPath, cfg.Path)
	} else {
		specDir = filepath.Join(localPath, "pipelines")
	}

	f.log.Info("Request repository synced",
		logger.String("url", cfg.URL),
		logger.String("dir", specDir))
	return f.LoadRequestDir(ctx, specDir)
}

func cloneOrPull(ctx context.Context, url, branch, localPath string) error {
	auth := gitAuth(url)

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return err
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return err
		}
		opts := &git.PullOptions{
			RemoteName: "origin",
			Auth:       auth,
		}
		if branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		}
		if err := worktree.PullContext(ctx, opts); err != nil && err != git.NoErrAlreadyUpToDate {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	opts := &git.CloneOptions{
		URL:  url,
		Auth: auth,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	_, err := git.PlainCloneContext(ctx, localPath, false, opts)
	return err
}

func gitAuth(url string) transport.AuthMethod {
	if strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://") {
		keyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(keyPath); err == nil {
			if auth, err := gitssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
				return auth
			}
		}
		return nil
	}

	if strings.HasPrefix(url, "https://") {
		username := os.Getenv("GIT_USERNAME")
		password := os.Getenv("GIT_PASSWORD")
		if username != "" && password != "" {
			return &githttp.BasicAuth{Username: username, Password: password}
		}
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			return &githttp.BasicAuth{Username: "token", Password: token}
		}
	}
	return nil
}
