package ado

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
)

const tagRefPrefix = "refs/tags/"

// ErrNilClient indicates a TagSource was built without a client.
var ErrNilClient = errors.New("ado tag source: nil ado client")

// TagSource lists tags from an Azure DevOps repository. It lets shallow CI checkouts,
// which usually carry no tags, resolve against the remote's tags.
type TagSource struct {
	client Client
}

// NewTagSource constructs a TagSource instance.
func NewTagSource(client Client) TagSource {
	return TagSource{client: client}
}

// ForEachTag reports each remote tag. Annotated tags report their peeled commit so the
// target never needs to exist locally as a tag object.
func (s TagSource) ForEachTag(ctx context.Context, fn vcs.TagFunc) error {
	if s.client == nil {
		return ErrNilClient
	}

	refs, err := s.client.ListRefsWithPrefix(ctx, tagRefPrefix)
	if err != nil {
		return fmt.Errorf("%w: %w", vcs.ErrBackendReadFailed, err)
	}

	for _, ref := range refs {
		target := strings.ToLower(ref.PeeledObjectID)
		if target == "" {
			target = strings.ToLower(ref.ObjectID)
		}
		if target == "" {
			continue
		}
		if !fn(vcs.CommitID(target), ref.Name) {
			return nil
		}
	}
	return nil
}

// PeelToCommit returns id unchanged; ForEachTag already reports peeled commits.
func (s TagSource) PeelToCommit(_ context.Context, id vcs.CommitID) (vcs.CommitID, bool, error) {
	return id, true, nil
}
