// Package tagindex groups tag names by the commit they mark.
package tagindex

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
)

// RefPrefix is the namespace every tag ref lives under.
const RefPrefix = "refs/tags/"

// Source enumerates tags and peels tag targets. vcs.Repository satisfies it.
type Source interface {
	ForEachTag(ctx context.Context, fn vcs.TagFunc) error
	PeelToCommit(ctx context.Context, id vcs.CommitID) (vcs.CommitID, bool, error)
}

// Index maps commits to the short names of the tags that mark them. It is immutable
// once built; every entry holds at least one name, in enumeration order.
type Index struct {
	byCommit map[vcs.CommitID][]string
}

// Build enumerates every tag of src, peels each target to its commit and groups the
// short names by commit. Tags that do not peel to a commit are left out.
func Build(ctx context.Context, src Source) (Index, error) {
	type entry struct {
		target vcs.CommitID
		name   string
	}

	var (
		entries []entry
		nameErr error
	)
	err := src.ForEachTag(ctx, func(target vcs.CommitID, refName string) bool {
		name, err := shortName(refName)
		if err != nil {
			nameErr = err
			return false
		}
		entries = append(entries, entry{target: target, name: name})
		return true
	})
	if err != nil {
		return Index{}, fmt.Errorf("enumerating tags: %w", err)
	}
	if nameErr != nil {
		return Index{}, nameErr
	}

	byCommit := make(map[vcs.CommitID][]string, len(entries))
	for _, e := range entries {
		commit, ok, err := src.PeelToCommit(ctx, e.target)
		if err != nil {
			return Index{}, fmt.Errorf("peeling tag %s: %w", e.name, err)
		}
		if !ok {
			continue
		}
		byCommit[commit] = append(byCommit[commit], e.name)
	}

	return Index{byCommit: byCommit}, nil
}

// Lookup returns the tag names on a commit.
func (i Index) Lookup(id vcs.CommitID) ([]string, bool) {
	names, ok := i.byCommit[id]
	if !ok || len(names) == 0 {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// Len returns the number of tagged commits.
func (i Index) Len() int {
	return len(i.byCommit)
}

// Commits lists the tagged commits in no particular order.
func (i Index) Commits() []vcs.CommitID {
	ids := make([]vcs.CommitID, 0, len(i.byCommit))
	for id := range i.byCommit {
		ids = append(ids, id)
	}
	return ids
}

func shortName(refName string) (string, error) {
	if !utf8.ValidString(refName) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", vcs.ErrMalformedTagName, refName)
	}
	name, ok := strings.CutPrefix(refName, RefPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q does not start with %q", vcs.ErrMalformedTagName, refName, RefPrefix)
	}
	if name == "" {
		return "", fmt.Errorf("%w: %q has an empty name", vcs.ErrMalformedTagName, refName)
	}
	return name, nil
}
