// Package gitinfo holds the version record derived from git history and its text form.
package gitinfo

import (
	"fmt"
	"strconv"
	"strings"

	semver "github.com/blang/semver/v4"
)

// ShortHashLength is the number of hex characters kept in GitInfo.CommitID.
// Git's default of 7 collides too often in large histories.
const ShortHashLength = 10

const (
	unknownTag     = "unknown"
	commitIDMarker = "g"
	modifiedSuffix = "modified"
)

// TagInfo names the nearest first-parent ancestor tag and its distance from HEAD.
type TagInfo struct {
	Tag             string `json:"tag" yaml:"tag"`
	CommitsSinceTag uint32 `json:"commits_since_tag" yaml:"commits_since_tag"`
}

// GitInfo is the version record of a source tree. TagInfo is nil when no ancestor is tagged.
type GitInfo struct {
	TagInfo  *TagInfo `json:"tag_info" yaml:"tag_info"`
	CommitID string   `json:"commit_id" yaml:"commit_id"`
	Modified bool     `json:"modified" yaml:"modified"`
}

// ShortHash truncates a full commit hash to ShortHashLength characters.
func ShortHash(full string) (string, error) {
	trimmed := strings.TrimSpace(full)
	if len(trimmed) < ShortHashLength {
		return "", fmt.Errorf("commit id %q shorter than %d characters", trimmed, ShortHashLength)
	}
	return trimmed[:ShortHashLength], nil
}

// HasTag reports whether a tag was found.
func (g GitInfo) HasTag() bool {
	return g.TagInfo != nil
}

// Equal compares field values, including the optional tag.
func (g GitInfo) Equal(other GitInfo) bool {
	if g.CommitID != other.CommitID || g.Modified != other.Modified {
		return false
	}
	if g.TagInfo == nil || other.TagInfo == nil {
		return g.TagInfo == nil && other.TagInfo == nil
	}
	return *g.TagInfo == *other.TagInfo
}

// String renders "<tag>+<n>.g<commit>" or "unknown.g<commit>", with ".modified" appended
// for dirty trees.
func (g GitInfo) String() string {
	var b strings.Builder
	if g.TagInfo != nil {
		b.WriteString(g.TagInfo.Tag)
		b.WriteByte('+')
		b.WriteString(strconv.FormatUint(uint64(g.TagInfo.CommitsSinceTag), 10))
	} else {
		b.WriteString(unknownTag)
	}
	b.WriteByte('.')
	b.WriteString(commitIDMarker)
	b.WriteString(g.CommitID)
	if g.Modified {
		b.WriteByte('.')
		b.WriteString(modifiedSuffix)
	}
	return b.String()
}

// Semver interprets the tag as a semantic version (an optional v prefix is dropped) and
// attaches the distance, commit and modified marker as build metadata.
func (g GitInfo) Semver() (semver.Version, error) {
	if g.TagInfo == nil {
		return semver.Version{}, fmt.Errorf("no tag to interpret as semver")
	}

	version, err := parseTag(g.TagInfo.Tag)
	if err != nil {
		return semver.Version{}, err
	}

	build := []string{
		strconv.FormatUint(uint64(g.TagInfo.CommitsSinceTag), 10),
		commitIDMarker + g.CommitID,
	}
	if g.Modified {
		build = append(build, modifiedSuffix)
	}
	for _, part := range build {
		if _, err := semver.NewBuildVersion(part); err != nil {
			return semver.Version{}, fmt.Errorf("build metadata %q: %w", part, err)
		}
	}
	version.Build = build
	return version, nil
}

func parseTag(tag string) (semver.Version, error) {
	normalized := strings.TrimSpace(tag)
	if normalized == "" {
		return semver.Version{}, fmt.Errorf("tag is empty")
	}

	if version, err := semver.Parse(normalized); err == nil {
		return version, nil
	}

	if len(normalized) > 1 && (normalized[0] == 'v' || normalized[0] == 'V') {
		if version, err := semver.Parse(normalized[1:]); err == nil {
			return version, nil
		}
	}

	return semver.Version{}, fmt.Errorf("tag %q is not a semantic version", tag)
}
