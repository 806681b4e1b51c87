package stamp

import (
	"fmt"
	"strings"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
)

// VersionImportPath is the package whose variables LDFlags targets by default.
const VersionImportPath = "github.com/launchbynttdata/launch-git-versioner/internal/version"

// VarNames maps each key to the variable in internal/version that receives it.
var VarNames = map[string]string{
	KeyIsKnown:         "GitKnown",
	KeyHasTag:          "GitHasTag",
	KeyTag:             "GitTag",
	KeyCommitsSinceTag: "GitCommitsSinceTag",
	KeyCommitID:        "GitCommitID",
	KeyModified:        "GitModified",
}

// LDFlags renders -X assignments that stamp info into the string variables of
// importPath, in the order of Keys.
func LDFlags(importPath string, info *gitinfo.GitInfo) (string, error) {
	path := strings.TrimSpace(importPath)
	if path == "" {
		return "", fmt.Errorf("import path is empty")
	}

	values, err := Encode("", info)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, 2*len(Keys()))
	for _, key := range Keys() {
		arg, err := quoteArg(path + "." + VarNames[key] + "=" + values[key])
		if err != nil {
			return "", err
		}
		parts = append(parts, "-X", arg)
	}
	return strings.Join(parts, " "), nil
}

// quoteArg quotes arg for the go command's flag splitting, which honours single and
// double quotes but no escapes.
func quoteArg(arg string) (string, error) {
	if !strings.ContainsAny(arg, " \t\n'\"") {
		return arg, nil
	}
	if !strings.Contains(arg, "'") {
		return "'" + arg + "'", nil
	}
	if !strings.Contains(arg, `"`) {
		return `"` + arg + `"`, nil
	}
	return "", fmt.Errorf("cannot quote %q for -ldflags", arg)
}
