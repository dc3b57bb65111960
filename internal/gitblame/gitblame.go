// Package gitblame enriches indexed files with their last commit and
// author, an optional, additive side table never consulted by the
// Resolver, Query Layer, or Spider (SPEC_FULL §10.3). Grounded on
// jabafett-quill's and petar-djukic-go-coder's go-git/go-git/v5 wrapper
// shape: open the repo once, wrap the operations this package needs.
package gitblame

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/rocket-tycoon/rocketindex/internal/store"
)

// ErrNoGit is returned by Open when root isn't inside a git working tree —
// blame enrichment is optional, so callers treat this as "skip, don't fail".
var ErrNoGit = errors.New("gitblame: not a git repository")

// Enricher blames files against a single open repository.
type Enricher struct {
	repo *gogit.Repository
	root string
}

// Open opens the git repository containing root. Returns ErrNoGit if root
// is not inside a working tree.
func Open(root string) (*Enricher, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	return &Enricher{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Blame finds path's most recent commit and populates a FileBlame for it.
// path may be absolute; it is made relative to the repository root since
// go-git's log path filter matches tree-relative paths.
func (e *Enricher) Blame(fileID int64, path string) (*store.FileBlame, error) {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(e.root, path)
		if err != nil {
			return nil, fmt.Errorf("gitblame: relativize %s: %w", path, err)
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	cIter, err := e.repo.Log(&gogit.LogOptions{FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("gitblame: log %s: %w", rel, err)
	}
	defer cIter.Close()

	commit, err := cIter.Next()
	if err != nil {
		return nil, nil
	}

	return &store.FileBlame{
		FileID:         fileID,
		LastCommit:     commit.Hash.String(),
		LastAuthor:     commit.Author.Name,
		LastAuthorTime: commit.Author.When,
	}, nil
}

// EnrichAll blames every file in files and upserts the results into s.
// Files outside the repository working tree, or with no commit history
// (untracked), are silently skipped — blame is additive metadata, not a
// build-blocking requirement.
func EnrichAll(s *store.Store, e *Enricher, files []*store.File) error {
	for _, f := range files {
		blame, err := e.Blame(f.ID, f.Path)
		if err != nil {
			if strings.Contains(err.Error(), "relativize") {
				continue
			}
			return fmt.Errorf("gitblame: %s: %w", f.Path, err)
		}
		if blame == nil {
			continue
		}
		if err := s.UpsertFileBlame(blame); err != nil {
			return fmt.Errorf("gitblame: store %s: %w", f.Path, err)
		}
	}
	return nil
}
