// Package vcstest builds throwaway git repositories for tests.
package vcstest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
)

// DefaultFile is the tracked file rewritten by Commit.
const DefaultFile = "file.txt"

var epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// Fixture is a git repository on disk under t.TempDir().
type Fixture struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository
	seq  int
}

// New initialises an empty repository with no commits.
func New(t testing.TB) *Fixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "init repository")

	return &Fixture{t: t, Dir: dir, Repo: repo}
}

// Repository returns the backend view of the fixture.
func (f *Fixture) Repository() *vcs.GoGitRepository {
	return vcs.FromRepository(f.Repo)
}

// Write creates or replaces a file in the work tree.
func (f *Fixture) Write(name, content string) {
	f.t.Helper()

	path := filepath.Join(f.Dir, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o600))
}

// Remove deletes a file from the work tree.
func (f *Fixture) Remove(name string) {
	f.t.Helper()
	require.NoError(f.t, os.Remove(filepath.Join(f.Dir, name)))
}

// Untrack removes a path from the index and leaves the file on disk, like
// `git rm --cached`.
func (f *Fixture) Untrack(name string) {
	f.t.Helper()

	path := filepath.Join(f.Dir, name)
	content, err := os.ReadFile(path)
	require.NoError(f.t, err, "read %s", name)

	_, err = f.worktree().Remove(name)
	require.NoError(f.t, err, "untrack %s", name)
	require.NoError(f.t, os.WriteFile(path, content, 0o600))
}

// Stage adds a path to the index.
func (f *Fixture) Stage(name string) {
	f.t.Helper()

	_, err := f.worktree().Add(name)
	require.NoError(f.t, err, "stage %s", name)
}

// Commit rewrites DefaultFile, stages it and commits. Without parents the commit
// follows HEAD; with parents it records exactly those, in order.
func (f *Fixture) Commit(parents ...plumbing.Hash) plumbing.Hash {
	f.t.Helper()

	f.seq++
	f.Write(DefaultFile, fmt.Sprintf("content %d\n", f.seq))
	f.Stage(DefaultFile)

	hash, err := f.worktree().Commit(fmt.Sprintf("commit %d", f.seq), &git.CommitOptions{
		Author:  f.signature(),
		Parents: parents,
	})
	require.NoError(f.t, err, "commit %d", f.seq)
	return hash
}

// Commits creates n commits on HEAD and returns the last one.
func (f *Fixture) Commits(n int) plumbing.Hash {
	f.t.Helper()

	var last plumbing.Hash
	for i := 0; i < n; i++ {
		last = f.Commit()
	}
	return last
}

// Tag creates a lightweight tag.
func (f *Fixture) Tag(name string, target plumbing.Hash) {
	f.t.Helper()

	_, err := f.Repo.CreateTag(name, target, nil)
	require.NoError(f.t, err, "tag %s", name)
}

// AnnotatedTag creates an annotated tag and returns the tag object's hash.
func (f *Fixture) AnnotatedTag(name string, target plumbing.Hash) plumbing.Hash {
	f.t.Helper()

	ref, err := f.Repo.CreateTag(name, target, &git.CreateTagOptions{
		Tagger:  f.signature(),
		Message: "release " + name,
	})
	require.NoError(f.t, err, "annotated tag %s", name)
	return ref.Hash()
}

// ResetHard moves HEAD and the work tree to the given commit.
func (f *Fixture) ResetHard(target plumbing.Hash) {
	f.t.Helper()

	err := f.worktree().Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset})
	require.NoError(f.t, err, "reset to %s", target)
}

func (f *Fixture) worktree() *git.Worktree {
	f.t.Helper()

	wt, err := f.Repo.Worktree()
	require.NoError(f.t, err, "open work tree")
	return wt
}

func (f *Fixture) signature() *object.Signature {
	return &object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  epoch.Add(time.Duration(f.seq) * time.Minute),
	}
}
