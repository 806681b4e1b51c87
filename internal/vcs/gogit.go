package vcs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// maxPeelDepth bounds tag-of-tag chains.
const maxPeelDepth = 32

// GoGitRepository implements Repository on top of go-git.
type GoGitRepository struct {
	repo *git.Repository
}

var _ Repository = (*GoGitRepository)(nil)

// Open opens the repository containing path, searching parent directories for the .git entry.
func Open(path string) (*GoGitRepository, error) {
	dir := strings.TrimSpace(path)
	if dir == "" {
		dir = "."
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, dir)
		}
		return nil, fmt.Errorf("%w: opening %s: %w", ErrBackendUnavailable, dir, err)
	}

	return FromRepository(repo), nil
}

// FromRepository wraps an already opened go-git repository.
func FromRepository(repo *git.Repository) *GoGitRepository {
	return &GoGitRepository{repo: repo}
}

// Head returns the commit HEAD resolves to.
func (r *GoGitRepository) Head(ctx context.Context) (CommitID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", ErrNoHeadCommit
		}
		return "", fmt.Errorf("%w: reading HEAD: %w", ErrBackendReadFailed, err)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", fmt.Errorf("%w: HEAD at %s: %w", ErrNoHeadCommit, ref.Hash(), err)
	}
	return CommitID(commit.Hash.String()), nil
}

// Parent returns the index-th parent of id. A parent recorded in the commit but absent
// from the object store (shallow clone boundary) is reported as ErrNoParent.
func (r *GoGitRepository) Parent(ctx context.Context, id CommitID, index int) (CommitID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := parseHash(id)
	if err != nil {
		return "", err
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", fmt.Errorf("%w: commit %s: %w", ErrBackendReadFailed, id, err)
	}

	if index < 0 || index >= len(commit.ParentHashes) {
		return "", ErrNoParent
	}

	parent := commit.ParentHashes[index]
	if _, err := r.repo.CommitObject(parent); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", ErrNoParent
		}
		return "", fmt.Errorf("%w: parent %s of %s: %w", ErrBackendReadFailed, parent, id, err)
	}
	return CommitID(parent.String()), nil
}

// ForEachTag iterates refs/tags/ references. Symbolic tag refs are skipped.
func (r *GoGitRepository) ForEachTag(ctx context.Context, fn TagFunc) error {
	iter, err := r.repo.Tags()
	if err != nil {
		return fmt.Errorf("%w: listing tags: %w", ErrBackendReadFailed, err)
	}

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if !fn(CommitID(ref.Hash().String()), ref.Name().String()) {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: iterating tags: %w", ErrBackendReadFailed, err)
	}
	return nil
}

// PeelToCommit follows annotated tag objects down to the commit they describe.
func (r *GoGitRepository) PeelToCommit(ctx context.Context, id CommitID) (CommitID, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	hash, err := parseHash(id)
	if err != nil {
		return "", false, err
	}

	for depth := 0; depth < maxPeelDepth; depth++ {
		obj, err := r.repo.Object(plumbing.AnyObject, hash)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("%w: object %s: %w", ErrBackendReadFailed, hash, err)
		}

		switch o := obj.(type) {
		case *object.Commit:
			return CommitID(o.Hash.String()), true, nil
		case *object.Tag:
			hash = o.Target
		default:
			return "", false, nil
		}
	}

	return "", false, fmt.Errorf("%w: tag chain from %s deeper than %d", ErrBackendReadFailed, id, maxPeelDepth)
}

// Status reports the index and work tree state of each changed path, sorted by path.
// go-git never reports ignored paths, so IncludeIgnored has no effect here.
func (r *GoGitRepository) Status(ctx context.Context, opts StatusOptions) ([]PathStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: opening work tree: %w", ErrStatusQueryFailed, err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusQueryFailed, err)
	}

	headTree, err := r.headTree()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusQueryFailed, err)
	}

	paths := make([]string, 0, len(status))
	for path := range status {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	result := make([]PathStatus, 0, len(paths))
	for _, path := range paths {
		fs := status[path]
		if fs == nil {
			continue
		}
		entry := PathStatus{
			Path:     path,
			Staging:  FileState(fs.Staging),
			Worktree: FileState(fs.Worktree),
		}
		// go-git reports a path removed from the index but kept on disk as "??" even
		// when HEAD still has it; git shows "D " plus "??".
		if entry.Staging == StateUntracked && inTree(headTree, path) {
			entry.Staging = StateDeleted
			if !opts.IncludeUntracked {
				entry.Worktree = StateUnmodified
			}
		}
		if !opts.IncludeUntracked && entry.IsUntracked() {
			continue
		}
		if !opts.IncludeUnmodified && entry.IsCurrent() {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

// headTree returns the tree of HEAD's commit, or nil on an unborn branch.
func (r *GoGitRepository) headTree() (*object.Tree, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("HEAD commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("HEAD tree: %w", err)
	}
	return tree, nil
}

func inTree(tree *object.Tree, path string) bool {
	if tree == nil {
		return false
	}
	entry, err := tree.FindEntry(path)
	return err == nil && entry.Mode.IsFile()
}

// Paths returns the work tree root and the git directory.
func (r *GoGitRepository) Paths() (string, string) {
	var worktree, gitDir string
	if wt, err := r.repo.Worktree(); err == nil {
		worktree = wt.Filesystem.Root()
	}
	if fs, ok := r.repo.Storer.(*filesystem.Storage); ok {
		gitDir = fs.Filesystem().Root()
	}
	return worktree, gitDir
}

func parseHash(id CommitID) (plumbing.Hash, error) {
	s := strings.TrimSpace(string(id))
	if len(s) != 2*len(plumbing.ZeroHash) {
		return plumbing.ZeroHash, fmt.Errorf("%w: invalid object id %q", ErrBackendReadFailed, s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: invalid object id %q: %w", ErrBackendReadFailed, s, err)
	}
	return plumbing.NewHash(s), nil
}
