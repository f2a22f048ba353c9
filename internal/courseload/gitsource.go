package courseload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitSource materializes course bundles from git repositories: each named
// course repo is cloned under baseDir and pulled on subsequent fetches.
type GitSource struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGitSource creates a git bundle source rooted at baseDir.
func NewGitSource(baseDir string) *GitSource {
	return &GitSource{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *GitSource) repoLock(name string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// Fetch clones or updates the repository for the named course and returns
// the checkout directory to load the bundle from. An empty ref means the
// remote default branch.
func (s *GitSource) Fetch(ctx context.Context, name, url, ref string) (string, error) {
	lock := s.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.baseDir, name)
	repo, err := s.cloneOrOpen(ctx, path, url)
	if err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"}); err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("pull %s: %w", name, err)
	}

	if ref != "" {
		if err := worktree.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(ref),
		}); err != nil {
			return "", fmt.Errorf("checkout %s: %w", ref, err)
		}
	}
	return path, nil
}

func (s *GitSource) cloneOrOpen(ctx context.Context, path, url string) (*git.Repository, error) {
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("open repo: %w", err)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create repos dir: %w", err)
	}
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}
	return repo, nil
}
