package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/stamp"
)

const (
	formatText   = "text"
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatEnv    = "env"
	formatSemver = "semver"
	formatGo     = "go"
)

func newDescribeCommand(rootFlags *rootFlagSet) *cobra.Command {
	var formatFlag *stringFlag
	var prefixFlag *stringFlag

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the version record of the repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runtime, cleanup, err := buildRuntime(ctx, rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			format, err := oneOf("format", formatFlag.Value(runtime.resolver), formatText, formatJSON, formatYAML, formatEnv, formatSemver)
			if err != nil {
				return err
			}
			prefix := prefixFlag.Value(runtime.resolver)

			info, err := runtime.resolve(ctx)
			if err != nil {
				return err
			}

			out, err := renderRecord(info, format, prefix)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), out); err != nil {
				return fmt.Errorf("writing version record: %w", err)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	formatFlag = bindStringFlag(fs, "format", "format", "o", envFormat, formatText, "Output format (text, json, yaml, env or semver)")
	prefixFlag = bindStringFlag(fs, "prefix", "prefix", "", envPrefix, stamp.DefaultPrefix, "Key prefix for the env format")

	return cmd
}

func renderRecord(info gitinfo.GitInfo, format, prefix string) (string, error) {
	switch format {
	case formatJSON:
		raw, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding json: %w", err)
		}
		return string(raw), nil
	case formatYAML:
		raw, err := yaml.Marshal(info)
		if err != nil {
			return "", fmt.Errorf("encoding yaml: %w", err)
		}
		return strings.TrimRight(string(raw), "\n"), nil
	case formatEnv:
		values, err := stamp.Encode(prefix, &info)
		if err != nil {
			return "", err
		}
		return strings.Join(stamp.Lines(values), "\n"), nil
	case formatSemver:
		v, err := info.Semver()
		if err != nil {
			return "", err
		}
		return v.String(), nil
	default:
		return info.String(), nil
	}
}
