package versioning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/domain/tagindex"
	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
)

// ErrNilRepository indicates the service was built without a repository.
var ErrNilRepository = errors.New("versioning service: nil repository")

// Option customises a Service.
type Option func(*Service)

// WithTagSource indexes tags from src instead of the repository's own refs.
func WithTagSource(src tagindex.Source) Option {
	return func(s *Service) {
		s.tags = src
	}
}

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service derives the version record of a repository's HEAD.
type Service struct {
	repo   vcs.Repository
	tags   tagindex.Source
	logger *zap.Logger
}

// NewService constructs a Service instance.
func NewService(repo vcs.Repository, opts ...Option) Service {
	s := Service{repo: repo, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Resolve computes the short commit id of HEAD, whether tracked files differ from it, and
// the nearest tag on HEAD's first-parent chain. A history without tags is not an error:
// the record simply carries no TagInfo.
func (s Service) Resolve(ctx context.Context) (gitinfo.GitInfo, error) {
	if s.repo == nil {
		return gitinfo.GitInfo{}, ErrNilRepository
	}

	head, err := s.repo.Head(ctx)
	if err != nil {
		return gitinfo.GitInfo{}, fmt.Errorf("resolving head: %w", err)
	}

	commitID, err := gitinfo.ShortHash(head.String())
	if err != nil {
		return gitinfo.GitInfo{}, fmt.Errorf("%w: %w", vcs.ErrBackendReadFailed, err)
	}

	modified, err := s.modified(ctx)
	if err != nil {
		return gitinfo.GitInfo{}, err
	}

	idx, err := tagindex.Build(ctx, s.tagSource())
	if err != nil {
		return gitinfo.GitInfo{}, fmt.Errorf("building tag index: %w", err)
	}

	tagInfo, err := s.nearestTag(ctx, head, idx)
	if err != nil {
		return gitinfo.GitInfo{}, err
	}

	info := gitinfo.GitInfo{TagInfo: tagInfo, CommitID: commitID, Modified: modified}

	log := s.logger.With(
		zap.String("head", head.String()),
		zap.Int("taggedCommits", idx.Len()),
		zap.Bool("modified", modified),
	)
	if tagInfo != nil {
		log = log.With(zap.String("tag", tagInfo.Tag), zap.Uint32("commitsSinceTag", tagInfo.CommitsSinceTag))
	}
	log.Debug("version resolved", zap.String("version", info.String()))

	return info, nil
}

func (s Service) tagSource() tagindex.Source {
	if s.tags != nil {
		return s.tags
	}
	return s.repo
}

// modified reports whether any tracked path has a staged or unstaged change.
func (s Service) modified(ctx context.Context) (bool, error) {
	statuses, err := s.repo.Status(ctx, vcs.StatusOptions{
		IncludeUntracked:  false,
		IncludeIgnored:    false,
		IncludeUnmodified: false,
	})
	if err != nil {
		return false, fmt.Errorf("querying status: %w", err)
	}

	for _, status := range statuses {
		if status.IsCurrent() || status.IsUntracked() {
			continue
		}
		return true, nil
	}
	return false, nil
}

// nearestTag walks first parents from head. Tags reachable only through later merge
// parents are never seen.
func (s Service) nearestTag(ctx context.Context, head vcs.CommitID, idx tagindex.Index) (*gitinfo.TagInfo, error) {
	current := head
	var commitsSinceTag uint32

	for {
		if names, ok := idx.Lookup(current); ok {
			return &gitinfo.TagInfo{Tag: names[0], CommitsSinceTag: commitsSinceTag}, nil
		}

		parent, err := s.repo.Parent(ctx, current, 0)
		if errors.Is(err, vcs.ErrNoParent) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("walking history at %s: %w", current, err)
		}

		current = parent
		commitsSinceTag++
	}
}
