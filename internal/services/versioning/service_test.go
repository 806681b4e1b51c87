package versioning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
	"github.com/launchbynttdata/launch-git-versioner/internal/vcs/vcstest"
)

func resolve(t *testing.T, fx *vcstest.Fixture) gitinfo.GitInfo {
	t.Helper()

	info, err := NewService(fx.Repository()).Resolve(context.Background())
	require.NoError(t, err)
	return info
}

func TestResolveWithoutTags(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	fx.Commits(3)

	info := resolve(t, fx)
	assert.Nil(t, info.TagInfo)
	assert.False(t, info.Modified)
	assert.True(t, strings.HasPrefix(info.String(), "unknown.g"))
}

func TestResolveOnTaggedHead(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	head := fx.Commit()
	fx.Tag("v1.0.0", head)

	info := resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v1.0.0", info.TagInfo.Tag)
	assert.Equal(t, uint32(0), info.TagInfo.CommitsSinceTag)
	assert.False(t, info.Modified)
}

func TestResolveCountsCommitsSinceTag(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 3, 7} {
		fx := vcstest.New(t)
		tagged := fx.Commit()
		fx.Tag("v1.0.0", tagged)
		fx.Commits(n)

		info := resolve(t, fx)
		require.NotNil(t, info.TagInfo)
		assert.Equal(t, "v1.0.0", info.TagInfo.Tag)
		assert.Equal(t, uint32(n), info.TagInfo.CommitsSinceTag)
	}
}

func TestResolvePicksNearestTag(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	first := fx.Commit()
	fx.Tag("v1.0.0", first)
	second := fx.Commit()
	fx.Tag("v2.0.0", second)
	fx.Commits(2)

	info := resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v2.0.0", info.TagInfo.Tag)
	assert.Equal(t, uint32(2), info.TagInfo.CommitsSinceTag)
}

func TestResolveFindsAnnotatedTags(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	tagged := fx.Commit()
	fx.AnnotatedTag("v3.1.0", tagged)
	fx.Commits(4)

	info := resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v3.1.0", info.TagInfo.Tag)
	assert.Equal(t, uint32(4), info.TagInfo.CommitsSinceTag)
}

func TestResolveTwoTagsOnSameCommit(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	head := fx.Commit()
	fx.Tag("v1.0.0", head)
	fx.Tag("v1.0.0-final", head)

	info := resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Contains(t, []string{"v1.0.0", "v1.0.0-final"}, info.TagInfo.Tag)
	assert.Equal(t, uint32(0), info.TagInfo.CommitsSinceTag)
}

func TestResolveIgnoresTagsOnSecondMergeParent(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	a := fx.Commit()
	b := fx.Commit()
	c := fx.Commit()

	side := fx.Commit(a)
	fx.Tag("side-v1", side)

	fx.ResetHard(c)
	fx.Commit(c, side)

	info := resolve(t, fx)
	assert.Nil(t, info.TagInfo, "tag only reachable through a second parent must not be found")

	fx.Tag("v0.1.0", b)
	info = resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v0.1.0", info.TagInfo.Tag)
	assert.Equal(t, uint32(2), info.TagInfo.CommitsSinceTag)
}

func TestResolveFollowsFirstParentThroughMerge(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	base := fx.Commit()
	fx.Tag("v1.0.0", base)
	mainline := fx.Commit()
	side := fx.Commit(base)
	fx.ResetHard(mainline)
	fx.Commit(mainline, side)

	info := resolve(t, fx)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v1.0.0", info.TagInfo.Tag)
	assert.Equal(t, uint32(2), info.TagInfo.CommitsSinceTag)
}

func TestResolveModifiedDetection(t *testing.T) {
	t.Parallel()

	t.Run("untracked file", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Write("untracked.txt", "new file")

		assert.False(t, resolve(t, fx).Modified)
	})

	t.Run("unstaged edit", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Write(vcstest.DefaultFile, "edited")

		assert.True(t, resolve(t, fx).Modified)
	})

	t.Run("staged edit", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Write(vcstest.DefaultFile, "staged")
		fx.Stage(vcstest.DefaultFile)

		assert.True(t, resolve(t, fx).Modified)
	})

	t.Run("deleted file", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Remove(vcstest.DefaultFile)

		assert.True(t, resolve(t, fx).Modified)
	})

	t.Run("staged deletion kept on disk", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Untrack(vcstest.DefaultFile)

		assert.True(t, resolve(t, fx).Modified)
	})

	t.Run("staged new file", func(t *testing.T) {
		t.Parallel()

		fx := vcstest.New(t)
		fx.Commit()
		fx.Write("added.txt", "added")
		fx.Stage("added.txt")

		assert.True(t, resolve(t, fx).Modified)
	})
}

func TestResolveCommitIDIsShortPrefixOfHead(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	head := fx.Commit()

	info := resolve(t, fx)
	assert.Len(t, info.CommitID, gitinfo.ShortHashLength)
	assert.True(t, strings.HasPrefix(head.String(), info.CommitID))
}

func TestResolveEmptyRepository(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	_, err := NewService(fx.Repository()).Resolve(context.Background())
	require.ErrorIs(t, err, vcs.ErrNoHeadCommit)
}

func TestResolveNilRepository(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil).Resolve(context.Background())
	require.ErrorIs(t, err, ErrNilRepository)
}

func TestResolveUsesConfiguredTagSource(t *testing.T) {
	t.Parallel()

	fx := vcstest.New(t)
	tagged := fx.Commit()
	fx.Commit()

	remote := &fakeRepo{tags: map[vcs.CommitID][]string{
		vcs.CommitID(tagged.String()): {"refs/tags/v9.9.9"},
	}}

	info, err := NewService(fx.Repository(), WithTagSource(remote)).Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.TagInfo)
	assert.Equal(t, "v9.9.9", info.TagInfo.Tag)
	assert.Equal(t, uint32(1), info.TagInfo.CommitsSinceTag)
}

func TestResolvePropagatesBackendErrors(t *testing.T) {
	t.Parallel()

	statusErr := errors.New("index locked")
	parentErr := errors.New("corrupt commit")

	cases := []struct {
		name string
		repo *fakeRepo
		want error
	}{
		{name: "head", repo: &fakeRepo{headErr: vcs.ErrNoHeadCommit}, want: vcs.ErrNoHeadCommit},
		{name: "status", repo: &fakeRepo{head: fakeHead, statusErr: statusErr}, want: statusErr},
		{name: "malformed tag", repo: &fakeRepo{head: fakeHead, tags: map[vcs.CommitID][]string{"x": {"tags/v1"}}}, want: vcs.ErrMalformedTagName},
		{name: "parent", repo: &fakeRepo{head: fakeHead, parentErr: parentErr}, want: parentErr},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewService(tc.repo).Resolve(context.Background())
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolveWalksFakeHistory(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		head:    fakeHead,
		parents: map[vcs.CommitID]vcs.CommitID{fakeHead: "p1", "p1": "p2"},
		tags:    map[vcs.CommitID][]string{"p2": {"refs/tags/v0.0.1"}},
		statuses: []vcs.PathStatus{
			{Path: "new.txt", Staging: vcs.StateUntracked, Worktree: vcs.StateUntracked},
			{Path: "same.txt", Staging: vcs.StateUnmodified, Worktree: vcs.StateUnmodified},
		},
	}

	info, err := NewService(repo).Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Equal(gitinfo.GitInfo{
		TagInfo:  &gitinfo.TagInfo{Tag: "v0.0.1", CommitsSinceTag: 2},
		CommitID: string(fakeHead)[:gitinfo.ShortHashLength],
	}), "unexpected record %s", info)
}

func TestResolveLogsAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	fx := vcstest.New(t)
	head := fx.Commit()
	fx.Tag("v1.0.0", head)

	_, err := NewService(fx.Repository(), WithLogger(zap.New(core))).Resolve(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "version resolved", entry.Message)
	assert.Equal(t, "v1.0.0", entry.ContextMap()["tag"])
}

const fakeHead vcs.CommitID = "0123456789abcdef0123456789abcdef01234567"

type fakeRepo struct {
	head      vcs.CommitID
	headErr   error
	parents   map[vcs.CommitID]vcs.CommitID
	parentErr error
	tags      map[vcs.CommitID][]string
	statuses  []vcs.PathStatus
	statusErr error
}

func (f *fakeRepo) Head(context.Context) (vcs.CommitID, error) {
	return f.head, f.headErr
}

func (f *fakeRepo) Parent(_ context.Context, id vcs.CommitID, index int) (vcs.CommitID, error) {
	if f.parentErr != nil {
		return "", f.parentErr
	}
	parent, ok := f.parents[id]
	if !ok || index != 0 {
		return "", vcs.ErrNoParent
	}
	return parent, nil
}

func (f *fakeRepo) ForEachTag(_ context.Context, fn vcs.TagFunc) error {
	for target, names := range f.tags {
		for _, name := range names {
			if !fn(target, name) {
				return nil
			}
		}
	}
	return nil
}

func (f *fakeRepo) PeelToCommit(_ context.Context, id vcs.CommitID) (vcs.CommitID, bool, error) {
	return id, true, nil
}

func (f *fakeRepo) Status(context.Context, vcs.StatusOptions) ([]vcs.PathStatus, error) {
	return f.statuses, f.statusErr
}

func (f *fakeRepo) Paths() (string, string) {
	return "", ""
}
