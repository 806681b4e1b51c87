package vcs

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable indicates the path is not inside a git repository.
	ErrBackendUnavailable = errors.New("vcs: repository not found")
	// ErrNoHeadCommit indicates HEAD does not resolve to a commit (empty repository, unborn branch).
	ErrNoHeadCommit = errors.New("vcs: head does not resolve to a commit")
	// ErrMalformedTagName indicates a tag ref name is not valid UTF-8 or lacks the refs/tags/ namespace.
	ErrMalformedTagName = errors.New("vcs: malformed tag name")
	// ErrStatusQueryFailed indicates the working tree status could not be computed.
	ErrStatusQueryFailed = errors.New("vcs: status query failed")
	// ErrBackendReadFailed indicates an object or reference could not be read.
	ErrBackendReadFailed = errors.New("vcs: read failed")

	// ErrNoParent is returned by Parent when the commit has no parent at the requested index.
	ErrNoParent = errors.New("vcs: commit has no such parent")
)

// CommitID is the full hex rendering of a commit hash.
type CommitID string

// String renders the full hash.
func (id CommitID) String() string {
	return string(id)
}

// FileState is a single-letter git status code.
type FileState byte

const (
	StateUnmodified         FileState = ' '
	StateUntracked          FileState = '?'
	StateModified           FileState = 'M'
	StateAdded              FileState = 'A'
	StateDeleted            FileState = 'D'
	StateRenamed            FileState = 'R'
	StateCopied             FileState = 'C'
	StateUpdatedButUnmerged FileState = 'U'
)

// PathStatus is the index (staging) and work tree state of one path.
type PathStatus struct {
	Path     string
	Staging  FileState
	Worktree FileState
}

// IsCurrent reports whether the path matches HEAD in both the index and the work tree.
func (s PathStatus) IsCurrent() bool {
	return s.Staging == StateUnmodified && s.Worktree == StateUnmodified
}

// IsUntracked reports whether the path is unknown to both HEAD and the index. A tracked
// path removed from the index but still on disk is a staged deletion, not untracked.
func (s PathStatus) IsUntracked() bool {
	return s.Staging == StateUntracked
}

// StatusOptions selects which paths Status reports.
type StatusOptions struct {
	IncludeUntracked  bool
	IncludeIgnored    bool
	IncludeUnmodified bool
}

// TagFunc receives each tag's target object and full ref name. Returning false stops the iteration.
type TagFunc func(target CommitID, refName string) bool

// Repository describes the read-only git operations the version resolver needs.
type Repository interface {
	// Head returns the commit HEAD points to.
	Head(ctx context.Context) (CommitID, error)

	// Parent returns the index-th parent of a commit (0 is the first parent).
	// ErrNoParent is returned when no such parent exists in the object store.
	Parent(ctx context.Context, id CommitID, index int) (CommitID, error)

	// ForEachTag calls fn for every ref under refs/tags/. Annotated tags report the tag object.
	ForEachTag(ctx context.Context, fn TagFunc) error

	// PeelToCommit follows tag objects until a commit is reached. ok is false when the
	// chain ends at a non-commit object or at an object that is not present.
	PeelToCommit(ctx context.Context, id CommitID) (commit CommitID, ok bool, err error)

	// Status reports per-path index and work tree state.
	Status(ctx context.Context, opts StatusOptions) ([]PathStatus, error)

	// Paths returns the work tree root (empty for bare repositories) and the git directory.
	Paths() (worktree string, gitDir string)
}
