// Package stamp carries a resolved git version across the build/runtime boundary as
// flat key-value pairs, dotenv files, generated Go constants or -ldflags assignments.
package stamp

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gorilla/schema"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
)

// DefaultPrefix is prepended to every key unless the caller chooses another one.
const DefaultPrefix = "GITVERSION_"

// Keys of the flat representation, before the prefix is applied.
const (
	KeyIsKnown         = "IS_KNOWN"
	KeyHasTag          = "HAS_TAG"
	KeyTag             = "TAG"
	KeyCommitsSinceTag = "COMMITS_SINCE_TAG"
	KeyCommitID        = "COMMIT_ID"
	KeyModified        = "MODIFIED"
)

// ErrMalformedStamp indicates stamped values that do not describe a version record.
var ErrMalformedStamp = errors.New("stamp: malformed values")

// record is the flat, field-for-field form of a *gitinfo.GitInfo.
type record struct {
	Known           bool   `schema:"IS_KNOWN,required"`
	HasTag          bool   `schema:"HAS_TAG"`
	Tag             string `schema:"TAG"`
	CommitsSinceTag uint32 `schema:"COMMITS_SINCE_TAG"`
	CommitID        string `schema:"COMMIT_ID"`
	Modified        bool   `schema:"MODIFIED"`
}

// Keys lists every key in a stable order.
func Keys() []string {
	return []string{KeyIsKnown, KeyHasTag, KeyTag, KeyCommitsSinceTag, KeyCommitID, KeyModified}
}

// Encode flattens info into prefixed key-value pairs. A nil info encodes the unknown
// record. Every key is always present; fields that do not apply are empty.
func Encode(prefix string, info *gitinfo.GitInfo) (map[string]string, error) {
	rec := record{}
	if info != nil {
		rec.Known = true
		rec.CommitID = info.CommitID
		rec.Modified = info.Modified
		if info.TagInfo != nil {
			rec.HasTag = true
			rec.Tag = info.TagInfo.Tag
			rec.CommitsSinceTag = info.TagInfo.CommitsSinceTag
		}
	}

	values := make(map[string][]string, len(Keys()))
	if err := schema.NewEncoder().Encode(rec, values); err != nil {
		return nil, fmt.Errorf("encoding version record: %w", err)
	}

	out := make(map[string]string, len(Keys()))
	for _, key := range Keys() {
		out[prefix+key] = first(values[key])
	}
	if !rec.HasTag {
		out[prefix+KeyTag] = ""
		out[prefix+KeyCommitsSinceTag] = ""
	}
	if !rec.Known {
		out[prefix+KeyCommitID] = ""
		out[prefix+KeyModified] = ""
	}
	return out, nil
}

// Decode rebuilds a version record from prefixed key-value pairs. Keys without the prefix
// are ignored. It returns nil when the values describe the unknown record.
func Decode(prefix string, values map[string]string) (*gitinfo.GitInfo, error) {
	form := make(map[string][]string, len(Keys()))
	for key, value := range values {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		form[name] = []string{strings.TrimSpace(value)}
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	var rec record
	if err := decoder.Decode(&rec, form); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStamp, err)
	}

	if !rec.Known {
		return nil, nil
	}
	if rec.CommitID == "" {
		return nil, fmt.Errorf("%w: %s%s is empty for a known version", ErrMalformedStamp, prefix, KeyCommitID)
	}

	info := &gitinfo.GitInfo{CommitID: rec.CommitID, Modified: rec.Modified}
	if rec.HasTag {
		info.TagInfo = &gitinfo.TagInfo{Tag: rec.Tag, CommitsSinceTag: rec.CommitsSinceTag}
	}
	return info, nil
}

// Lines renders prefixed pairs as sorted KEY=value lines.
func Lines(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values[key])
	}
	return lines
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
