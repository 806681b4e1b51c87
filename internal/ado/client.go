package ado

import (
	"context"
)

// Ref represents a Git ref returned by Azure DevOps.
type Ref struct {
	Name     string
	ObjectID string
	// PeeledObjectID is the commit an annotated tag points to. Empty for lightweight tags.
	PeeledObjectID string
}

// Client describes the Azure DevOps Git operations needed to read a repository's tags.
type Client interface {
	// ListRefsWithPrefix returns refs whose names start with the provided prefix
	// (e.g. "refs/tags/"), with annotated tags peeled. The concrete client encapsulates
	// organization/project/repo details.
	ListRefsWithPrefix(ctx context.Context, prefix string) ([]Ref, error)
}
