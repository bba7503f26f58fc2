package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/certify/pkg/config"
)

// errHistoryLimit stops commit iteration once enough commits are collected.
var errHistoryLimit = errors.New("history limit reached")

// CommitInfo contains metadata about a policy repository commit.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Branch     string    `json:"branch"`
	Repository string    `json:"repository"`
}

// SyncResult describes a Sync call.
type SyncResult struct {
	// Cloned is true when the repository was cloned by this call.
	Cloned bool

	// FromSHA and ToSHA are HEAD before and after the call.
	FromSHA string
	ToSHA   string

	// ChangedFiles lists files changed by a pull, relative to the
	// repository root.
	ChangedFiles []string
}

// Updated reports whether HEAD moved.
func (r *SyncResult) Updated() bool {
	return r.Cloned || r.FromSHA != r.ToSHA
}

// Source keeps a local checkout of a Git-hosted policy repository.
type Source struct {
	cfg    config.GitPolicyConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewSource validates cfg and creates a source. Nothing is fetched until Sync.
func NewSource(cfg config.GitPolicyConfig, logger *slog.Logger) (*Source, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = config.DefaultPolicyGitBranch
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = config.DefaultPolicyGitLocalPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultPolicyGitTimeout
	}
	if _, err := AuthMethod(cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to create auth method: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		cfg:    cfg,
		logger: logger.With("component", "policy.git", "repository", cfg.Repository),
	}, nil
}

// Sync clones the repository on first use, or opens the existing checkout
// and pulls the configured branch.
func (s *Source) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	auth, err := AuthMethod(s.cfg.Auth)
	if err != nil {
		return nil, err
	}

	if s.repo == nil {
		if _, err := os.Stat(filepath.Join(s.cfg.LocalPath, ".git")); err == nil {
			repo, err := gogit.PlainOpen(s.cfg.LocalPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open existing repo: %w", err)
			}
			s.repo = repo
		} else {
			if err := os.MkdirAll(s.cfg.LocalPath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create repository directory: %w", err)
			}

			start := time.Now()
			repo, err := gogit.PlainCloneContext(ctx, s.cfg.LocalPath, false, &gogit.CloneOptions{
				URL:           s.cfg.Repository,
				ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
				SingleBranch:  s.cfg.Depth > 0,
				Depth:         s.cfg.Depth,
				Auth:          auth,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to clone repository: %w", err)
			}
			s.repo = repo

			head, err := s.headSHA()
			if err != nil {
				return nil, err
			}
			s.logger.InfoContext(ctx, "policy repository cloned",
				"commit", head,
				"duration", time.Since(start),
			)
			return &SyncResult{Cloned: true, ToSHA: head}, nil
		}
	}

	from, err := s.headSHA()
	if err != nil {
		return nil, err
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	err = worktree.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	to, err := s.headSHA()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{FromSHA: from, ToSHA: to}
	if from != to {
		files, err := s.changedFiles(from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to get changed files: %w", err)
		}
		result.ChangedFiles = files
		s.logger.InfoContext(ctx, "policy repository updated",
			"from", from,
			"to", to,
			"changed_files", len(files),
		)
	}
	return result, nil
}

// PolicyPath returns the directory inside the checkout that holds the
// policy categories.
func (s *Source) PolicyPath() string {
	return filepath.Join(s.cfg.LocalPath, s.cfg.Path)
}

// CurrentCommit returns the HEAD commit of the checkout.
func (s *Source) CurrentCommit() (*CommitInfo, error) {
	history, err := s.History(1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("repository has no commits")
	}
	return history[0], nil
}

// History returns up to limit commits reachable from HEAD, newest first.
func (s *Source) History(limit int) ([]*CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Sync first")
	}

	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	iter, err := s.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}

	var history []*CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if len(history) >= limit {
			return errHistoryLimit
		}
		history = append(history, &CommitInfo{
			SHA:        c.Hash.String(),
			Author:     c.Author.Name,
			Email:      c.Author.Email,
			Timestamp:  c.Author.When,
			Message:    c.Message,
			Branch:     s.cfg.Branch,
			Repository: s.cfg.Repository,
		})
		return nil
	})
	if err != nil && !errors.Is(err, errHistoryLimit) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return history, nil
}

func (s *Source) headSHA() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func (s *Source) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := s.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := s.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}
