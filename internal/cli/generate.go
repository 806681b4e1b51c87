package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
	"github.com/launchbynttdata/launch-git-versioner/internal/stamp"
	"github.com/launchbynttdata/launch-git-versioner/internal/watch"
)

const generatorName = "lgv generate"

type generateFlagSet struct {
	output *stringFlag
	pkg    *stringFlag
	format *stringFlag
	prefix *stringFlag
	strict *boolFlag
}

type generateConfig struct {
	output string
	pkg    string
	format string
	prefix string
	strict bool
}

func bindGenerateFlags(cmd *cobra.Command) *generateFlagSet {
	fs := cmd.Flags()
	return &generateFlagSet{
		output: bindStringFlag(fs, "output", "output", "", envOutput, "", "File to write (defaults to "+stamp.DefaultGoFile+" or version.env)"),
		pkg:    bindStringFlag(fs, "package", "package", "", envPackage, defaultPackage(), "Package clause of the generated Go file"),
		format: bindStringFlag(fs, "format", "format", "", envGenFormat, formatGo, "Output format (go or env)"),
		prefix: bindStringFlag(fs, "prefix", "prefix", "", envPrefix, stamp.DefaultPrefix, "Key prefix for the env format"),
		strict: bindBoolFlag(fs, "strict", "strict", "", envStrict, false, "Fail instead of writing the unknown version when resolution fails"),
	}
}

// defaultPackage follows the package go generate runs in.
func defaultPackage() string {
	if pkg := strings.TrimSpace(os.Getenv("GOPACKAGE")); pkg != "" {
		return pkg
	}
	return "main"
}

func (f *generateFlagSet) resolve(runtime runtimeConfig) (generateConfig, error) {
	format, err := oneOf("format", f.format.Value(runtime.resolver), formatGo, formatEnv)
	if err != nil {
		return generateConfig{}, err
	}

	strict, err := f.strict.Value(runtime.resolver)
	if err != nil {
		return generateConfig{}, err
	}

	output := strings.TrimSpace(f.output.Value(runtime.resolver))
	if output == "" {
		output = stamp.DefaultGoFile
		if format == formatEnv {
			output = "version.env"
		}
	}

	return generateConfig{
		output: output,
		pkg:    strings.TrimSpace(f.pkg.Value(runtime.resolver)),
		format: format,
		prefix: f.prefix.Value(runtime.resolver),
		strict: strict,
	}, nil
}

func newGenerateCommand(rootFlags *rootFlagSet) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the version record as Go constants or a dotenv file",
		Long: "Write the version record as Go constants or a dotenv file. Intended for\n" +
			"//go:generate lgv generate. Resolution failures degrade to the unknown version.",
	}

	genFlags := bindGenerateFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		runtime, cleanup, err := buildRuntime(ctx, rootFlags)
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := genFlags.resolve(runtime)
		if err != nil {
			return err
		}

		_, err = runGenerate(ctx, runtime, cfg)
		return err
	}

	return cmd
}

// runGenerate resolves and writes one record. It returns the change triggers, which are
// empty when no repository could be opened.
func runGenerate(ctx context.Context, runtime runtimeConfig, cfg generateConfig) ([]string, error) {
	var info *gitinfo.GitInfo
	var triggers []string

	service, repo, err := runtime.openService()
	if err == nil {
		worktree, gitDir := repo.Paths()
		for _, p := range []string{worktree, gitDir} {
			if p != "" {
				triggers = append(triggers, p)
			}
		}
		runtime.logger.Debug("change triggers", zap.Strings("paths", triggers))

		var resolved gitinfo.GitInfo
		resolved, err = service.Resolve(ctx)
		if err == nil {
			info = &resolved
		}
	}
	if err != nil {
		if cfg.strict {
			return triggers, err
		}
		runtime.logger.Warn("version unknown", zap.String("path", runtime.path), zap.Error(err))
	}

	switch cfg.format {
	case formatEnv:
		err = stamp.WriteDotenv(cfg.output, cfg.prefix, info)
	default:
		err = stamp.WriteGo(cfg.output, stamp.GoOptions{Package: cfg.pkg, Generator: generatorName}, info)
	}
	if err != nil {
		return triggers, err
	}

	described := "unknown"
	if info != nil {
		described = info.String()
	}
	runtime.logger.Info("version written", zap.String("output", cfg.output), zap.String("version", described))
	return triggers, nil
}

func newLDFlagsCommand(rootFlags *rootFlagSet) *cobra.Command {
	var importPathFlag *stringFlag

	cmd := &cobra.Command{
		Use:   "ldflags",
		Short: "Print -X linker flags that stamp the version record into a binary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runtime, cleanup, err := buildRuntime(ctx, rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			flags, err := stamp.LDFlags(importPathFlag.Value(runtime.resolver), runtime.resolveOrUnknown(ctx))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), flags); err != nil {
				return fmt.Errorf("writing ldflags: %w", err)
			}
			return nil
		},
	}

	importPathFlag = bindStringFlag(cmd.Flags(), "import-path", "import-path", "", envImportPath, stamp.VersionImportPath, "Package holding the Git* string variables")

	return cmd
}

func newWatchCommand(rootFlags *rootFlagSet) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the version file whenever the work tree or git metadata changes",
	}

	genFlags := bindGenerateFlags(cmd)
	fs := cmd.Flags()
	debounceFlag := bindIntFlag(fs, "debounce-ms", "debounce-ms", "", envDebounce, int(watch.DefaultDebounce/time.Millisecond), "Quiet period before regenerating, in milliseconds")
	ignoreFlag := bindStringSliceFlag(fs, "ignore", "ignore", "", envIgnore, nil, "Additional files whose changes never trigger regeneration")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runtime, cleanup, err := buildRuntime(ctx, rootFlags)
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := genFlags.resolve(runtime)
		if err != nil {
			return err
		}

		debounceMS, err := debounceFlag.Value(runtime.resolver)
		if err != nil {
			return err
		}
		if debounceMS <= 0 {
			return fmt.Errorf("debounce-ms must be greater than zero")
		}

		triggers, err := runGenerate(ctx, runtime, cfg)
		if err != nil {
			return err
		}
		if len(triggers) == 0 {
			return fmt.Errorf("watch: no repository found at %s", runtime.path)
		}

		_, repo, err := runtime.openService()
		if err != nil {
			return err
		}
		worktree, gitDir := repo.Paths()

		ignore := append([]string{cfg.output}, ignoreFlag.Value(runtime.resolver)...)
		watcher := watch.New(worktree, gitDir,
			watch.WithDebounce(time.Duration(debounceMS)*time.Millisecond),
			watch.WithIgnore(ignore...),
			watch.WithLogger(runtime.logger),
		)

		runtime.logger.Info("watching for changes", zap.String("worktree", worktree), zap.String("gitDir", gitDir))
		return watcher.Run(ctx, func(ctx context.Context) error {
			_, err := runGenerate(ctx, runtime, cfg)
			return err
		})
	}

	return cmd
}
