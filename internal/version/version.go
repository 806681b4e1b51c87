// Package version exposes build-time metadata stamped into the binary via ldflags.
package version

import (
	"runtime/debug"
	"strconv"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/stamp"
)

const (
	defaultVersion   = "dev"
	defaultBuildDate = "unknown"
)

var (
	// Version is the semantic version associated with this build.
	Version = defaultVersion
	// BuildDate is the UTC timestamp when the binary was built.
	BuildDate = defaultBuildDate
)

// Git version record, set with the flags printed by `lgv ldflags`. GitKnown stays empty
// when the binary was not stamped.
var (
	GitKnown           string
	GitHasTag          string
	GitTag             string
	GitCommitsSinceTag string
	GitCommitID        string
	GitModified        string
)

var readBuildInfo = debug.ReadBuildInfo

// Info returns the version record stamped into the binary. Without a stamp it falls
// back to the VCS settings recorded by the Go toolchain, which carry no tag. It returns
// nil when neither source knows the commit.
func Info() *gitinfo.GitInfo {
	if GitKnown != "" {
		info, err := stamp.Decode("", map[string]string{
			stamp.KeyIsKnown:         GitKnown,
			stamp.KeyHasTag:          GitHasTag,
			stamp.KeyTag:             GitTag,
			stamp.KeyCommitsSinceTag: GitCommitsSinceTag,
			stamp.KeyCommitID:        GitCommitID,
			stamp.KeyModified:        GitModified,
		})
		if err == nil {
			return info
		}
	}
	return fromBuildInfo()
}

func fromBuildInfo() *gitinfo.GitInfo {
	bi, ok := readBuildInfo()
	if !ok {
		return nil
	}

	var revision string
	var modified bool
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified, _ = strconv.ParseBool(setting.Value)
		}
	}

	commitID, err := gitinfo.ShortHash(revision)
	if err != nil {
		return nil
	}
	return &gitinfo.GitInfo{CommitID: commitID, Modified: modified}
}

// Summary returns a human-readable description of the build metadata.
func Summary() string {
	summary := Version + " (built " + BuildDate + ")"
	if info := Info(); info != nil {
		summary += " " + info.String()
	}
	return summary
}
