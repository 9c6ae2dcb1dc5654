// Package remote clones repositories named on the command line so they can be analyzed like local paths.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source represents a remote repository to analyze.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

var shaPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Parse detects if a path is a remote reference.
// Returns nil if path exists on filesystem (local path takes precedence).
func Parse(path string) (*Source, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	// SSH URLs carry an @ before the host; a ref suffix comes after the last slash.
	ref := ""
	if idx := strings.LastIndex(path, "@"); idx != -1 && idx > strings.LastIndex(path, "/") {
		ref = path[idx+1:]
		path = path[:idx]
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"):
		return &Source{URL: strings.TrimSuffix(path, "/"), Ref: ref}, nil
	case strings.HasPrefix(path, "git@"), strings.HasPrefix(path, "ssh://"):
		return &Source{URL: path, Ref: ref}, nil
	case isHostPath(path):
		return &Source{URL: "https://" + strings.TrimSuffix(path, "/"), Ref: ref}, nil
	case isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}, nil
	}
	return nil, nil
}

// isHostPath matches host.tld/owner/repo.
func isHostPath(path string) bool {
	parts := strings.Split(path, "/")
	return len(parts) >= 3 && strings.Contains(parts[0], ".") && !strings.HasPrefix(parts[0], ".") &&
		parts[1] != "" && parts[2] != ""
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 {
		return false
	}
	if strings.Count(path, "/") != 1 {
		return false
	}
	// A dot before the slash is a domain or a relative path.
	if strings.Contains(path[:slashIdx], ".") {
		return false
	}
	return slashIdx > 0 && slashIdx < len(path)-1
}

// Clone clones the repository into a temp directory and checks out Ref.
// Shallow clones are only used for branch and tag refs.
func (s *Source) Clone(ctx context.Context, progress io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "callscope-clone-*")
	if err != nil {
		return err
	}
	s.CloneDir = dir

	opts := &git.CloneOptions{URL: s.URL, Progress: progress}
	isSHA := shaPattern.MatchString(s.Ref)
	if shallow && !isSHA {
		opts.Depth = 1
	}

	if s.Ref == "" || isSHA {
		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			return s.fail(err)
		}
		if isSHA {
			return s.fail(checkoutRevision(repo, s.Ref))
		}
		return nil
	}

	opts.SingleBranch = true
	opts.ReferenceName = plumbing.NewBranchReferenceName(s.Ref)
	_, err = git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil {
		return nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) && !isNoMatchingRef(err) {
		return s.fail(err)
	}

	// Not a branch; retry as a tag in a fresh directory.
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(s.Ref)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return s.fail(fmt.Errorf("ref %q not found: %w", s.Ref, err))
	}
	return nil
}

func isNoMatchingRef(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	return errors.As(err, &noMatch) || strings.Contains(err.Error(), "couldn't find remote ref")
}

func checkoutRevision(repo *git.Repository, ref string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", ref, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash})
}

func (s *Source) fail(err error) error {
	if err != nil {
		s.Cleanup()
	}
	return err
}

// Cleanup removes the clone directory.
func (s *Source) Cleanup() {
	if s.CloneDir != "" {
		os.RemoveAll(s.CloneDir)
		s.CloneDir = ""
	}
}

// Display names the source for messages.
func (s *Source) Display() string {
	if s.Ref == "" {
		return s.URL
	}
	return s.URL + "@" + s.Ref
}
