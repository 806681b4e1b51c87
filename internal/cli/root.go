package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-git-versioner/internal/ado"
	"github.com/launchbynttdata/launch-git-versioner/internal/config"
	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/logging"
	"github.com/launchbynttdata/launch-git-versioner/internal/services/versioning"
	"github.com/launchbynttdata/launch-git-versioner/internal/vcs"
	"github.com/launchbynttdata/launch-git-versioner/internal/version"
)

const (
	envPath       = "LGV_PATH"
	envLogLevel   = "LGV_LOG_LEVEL"
	envTagSource  = "LGV_TAG_SOURCE"
	envADOOrgURL  = "LGV_ADO_ORG_URL"
	envADOProject = "LGV_ADO_PROJECT"
	envADORepo    = "LGV_ADO_REPO"
	envADOToken   = "LGV_ADO_TOKEN"

	envFormat     = "LGV_FORMAT"
	envGenFormat  = "LGV_GENERATE_FORMAT"
	envOutput     = "LGV_OUTPUT"
	envPackage    = "LGV_PACKAGE"
	envPrefix     = "LGV_PREFIX"
	envImportPath = "LGV_IMPORT_PATH"
	envDebounce   = "LGV_DEBOUNCE_MS"
	envIgnore     = "LGV_WATCH_IGNORE"
	envStrict     = "LGV_STRICT"

	requiredFlagFormat = "%s is required when tag-source is %s (set %s or --%s)"
)

const (
	tagSourceLocal = "local"
	tagSourceADO   = "ado"
)

// Execute runs the CLI root command with the provided context.
func Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return newRootCommand().ExecuteContext(ctx)
}

type rootFlagSet struct {
	path       *stringFlag
	logLevel   *stringFlag
	tagSource  *stringFlag
	adoOrgURL  *stringFlag
	adoProject *stringFlag
	adoRepo    *stringFlag
	adoToken   *stringFlag
}

type runtimeConfig struct {
	resolver config.Resolver
	logger   *zap.Logger
	path     string
	options  []versioning.Option
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lgv",
		Short:         "Launch Git Versioner",
		Long:          "Derive a version record (nearest tag, distance, short commit id, dirty flag) from a git repository.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate("lgv {{.Version}}\n")

	flags := bindRootFlags(cmd)
	cmd.AddCommand(
		newDescribeCommand(flags),
		newGenerateCommand(flags),
		newLDFlagsCommand(flags),
		newWatchCommand(flags),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source := "unknown"
			if info := version.Info(); info != nil {
				source = info.String()
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "lgv %s\nbuild date: %s\nsource: %s\n", version.Version, version.BuildDate, source); err != nil {
				return fmt.Errorf("writing version info: %w", err)
			}
			return nil
		},
	}
}

func bindRootFlags(cmd *cobra.Command) *rootFlagSet {
	fs := cmd.PersistentFlags()
	return &rootFlagSet{
		path:       bindStringFlag(fs, "path", "path", "C", envPath, ".", "Directory inside the repository to describe"),
		logLevel:   bindStringFlag(fs, "log-level", "log-level", "", envLogLevel, logging.LevelTerse, "Log verbosity (terse, verbose or quiet)"),
		tagSource:  bindStringFlag(fs, "tag-source", "tag-source", "", envTagSource, tagSourceLocal, "Where tags are read from (local or ado)"),
		adoOrgURL:  bindStringFlag(fs, "ado-org-url", "ado-org-url", "", envADOOrgURL, "", "Azure DevOps organization URL"),
		adoProject: bindStringFlag(fs, "ado-project", "ado-project", "", envADOProject, "", "Azure DevOps project name"),
		adoRepo:    bindStringFlag(fs, "ado-repo", "ado-repo", "", envADORepo, "", "Azure DevOps repository name"),
		adoToken:   bindSecretFlag(fs, "ado-token", "ado-token", "", envADOToken, "", "Azure DevOps personal access token or System.AccessToken"),
	}
}

func buildRuntime(ctx context.Context, flags *rootFlagSet) (runtimeConfig, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	nopResolver := config.NewResolver(zap.NewNop())
	logLevel := flags.logLevel.Value(nopResolver)

	logger, err := logging.New(logLevel)
	if err != nil {
		return runtimeConfig{}, nil, fmt.Errorf("configuring logger: %w", err)
	}

	resolver := config.NewResolver(logger)
	_ = flags.logLevel.Value(resolver)

	cleanup := func() {
		_ = logger.Sync()
	}

	path := strings.TrimSpace(flags.path.Value(resolver))
	if path == "" {
		path = "."
	}

	options := []versioning.Option{versioning.WithLogger(logger)}

	tagSource := strings.ToLower(strings.TrimSpace(flags.tagSource.Value(resolver)))
	switch tagSource {
	case tagSourceLocal, "":
	case tagSourceADO:
		src, err := buildADOTagSource(ctx, flags, resolver)
		if err != nil {
			cleanup()
			return runtimeConfig{}, nil, err
		}
		options = append(options, versioning.WithTagSource(src))
	default:
		cleanup()
		return runtimeConfig{}, nil, fmt.Errorf("invalid tag source %q (want %s or %s)", tagSource, tagSourceLocal, tagSourceADO)
	}

	return runtimeConfig{
		resolver: resolver,
		logger:   logger,
		path:     path,
		options:  options,
	}, cleanup, nil
}

func buildADOTagSource(ctx context.Context, flags *rootFlagSet, resolver config.Resolver) (ado.TagSource, error) {
	required := []struct {
		flag   *stringFlag
		name   string
		envKey string
	}{
		{flag: flags.adoOrgURL, name: "ado-org-url", envKey: envADOOrgURL},
		{flag: flags.adoProject, name: "ado-project", envKey: envADOProject},
		{flag: flags.adoRepo, name: "ado-repo", envKey: envADORepo},
		{flag: flags.adoToken, name: "ado-token", envKey: envADOToken},
	}

	values := make([]string, len(required))
	for i, r := range required {
		values[i] = strings.TrimSpace(r.flag.Value(resolver))
		if values[i] == "" {
			return ado.TagSource{}, fmt.Errorf(requiredFlagFormat, r.name, tagSourceADO, r.envKey, r.name)
		}
	}

	client, err := ado.NewClient(ctx, ado.Config{
		OrganizationURL: values[0],
		Project:         values[1],
		Repository:      values[2],
		Token:           values[3],
	})
	if err != nil {
		return ado.TagSource{}, err
	}
	return ado.NewTagSource(client), nil
}

// openService opens the repository enclosing the configured path.
func (r runtimeConfig) openService() (versioning.Service, *vcs.GoGitRepository, error) {
	repo, err := vcs.Open(r.path)
	if err != nil {
		return versioning.Service{}, nil, err
	}
	return versioning.NewService(repo, r.options...), repo, nil
}

// resolve returns the version record of the configured repository.
func (r runtimeConfig) resolve(ctx context.Context) (gitinfo.GitInfo, error) {
	service, _, err := r.openService()
	if err != nil {
		return gitinfo.GitInfo{}, err
	}
	return service.Resolve(ctx)
}

// resolveOrUnknown degrades every resolution failure to the unknown record.
func (r runtimeConfig) resolveOrUnknown(ctx context.Context) *gitinfo.GitInfo {
	info, err := r.resolve(ctx)
	if err != nil {
		r.logger.Warn("version unknown", zap.String("path", r.path), zap.Error(err))
		return nil
	}
	return &info
}

func oneOf(setting, value string, allowed ...string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if slices.Contains(allowed, normalized) {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid %s %q (want one of %s)", setting, value, strings.Join(allowed, ", "))
}
