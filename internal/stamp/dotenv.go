package stamp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
)

// MarshalDotenv renders info as a dotenv document.
func MarshalDotenv(prefix string, info *gitinfo.GitInfo) (string, error) {
	values, err := Encode(prefix, info)
	if err != nil {
		return "", err
	}
	lines := Lines(values)
	for i, line := range lines {
		key, value, _ := strings.Cut(line, "=")
		lines[i] = key + `="` + dotenvEscaper.Replace(value) + `"`
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// dotenvEscaper quotes the way godotenv.Marshal does. Every value is quoted, so
// numeric-looking commit ids keep their leading zeros.
var dotenvEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
	"!", `\!`,
	"$", `\$`,
	"`", "\\`",
)

// UnmarshalDotenv parses a dotenv document produced by MarshalDotenv.
func UnmarshalDotenv(prefix, doc string) (*gitinfo.GitInfo, error) {
	values, err := godotenv.Unmarshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing dotenv: %w", ErrMalformedStamp, err)
	}
	return Decode(prefix, values)
}

// WriteDotenv writes info to path.
func WriteDotenv(path, prefix string, info *gitinfo.GitInfo) error {
	doc, err := MarshalDotenv(prefix, info)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(doc))
}

// ReadDotenv loads a dotenv file written by WriteDotenv.
func ReadDotenv(path, prefix string) (*gitinfo.GitInfo, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(prefix, values)
}

// writeFile replaces path through a temp file in the same directory.
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
