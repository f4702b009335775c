package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caffeineduck/rulebox/executor"
	"github.com/caffeineduck/rulebox/hostfunc"
	"github.com/caffeineduck/rulebox/language/typescript"
)

// errReviewFailed is returned when a rule reported a failure or a rule file
// errored. The report has already been printed.
var errReviewFailed = errors.New("review failed")

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Run rule files and print their findings",
		Long: `Run one or more rule files in a single environment.

Files run in the order given and share one result set. A file that throws
is reported and the remaining files still run. The exit status is non-zero
when any rule called fail or any file errored.

Examples:
  rulebox run dangerfile.js
  rulebox run --ts --format json rules/*.ts
  rulebox run --mount /repo:. --allow-host api.github.com dangerfile.js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, v, args)
		},
	}

	cmd.Flags().String("root", ".", "Module root; relative paths resolve against it")
	cmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().Duration("timeout", 30*time.Second, "Per-file execution timeout (0 disables)")
	cmd.Flags().Bool("rewrite", false, "Write the cleaned source back to each rule file")
	cmd.Flags().Bool("ts", false, "Load TypeScript modules (implied by a .ts rule file)")
	cmd.Flags().StringSlice("setup", nil, "Setup file run before each rule file (repeatable)")
	cmd.Flags().Bool("cache", false, "Cache transformed modules on disk")
	cmd.Flags().String("cache-dir", "", "Transform cache directory (default: OS temp dir)")
	cmd.Flags().StringSlice("transform-ignore", nil, "Regexp of module paths loaded without transform (repeatable)")
	cmd.Flags().Bool("kv", false, "Expose a key-value store as 'store'")
	cmd.Flags().StringSlice("allow-host", nil, "Expose 'http' allowing this host (repeatable)")
	cmd.Flags().StringSlice("mount", nil, "Expose 'fs' with a read-only mount virtual:host (repeatable)")

	// Security limits
	cmd.Flags().Int("http-max-url", hostfunc.DefaultMaxURLLength, "Max HTTP URL length")
	cmd.Flags().Int64("http-max-body", hostfunc.DefaultMaxBodySize, "Max HTTP body size")
	cmd.Flags().Uint("http-retries", 0, "Extra attempts for idempotent HTTP requests")
	cmd.Flags().Int64("fs-max-file", hostfunc.DefaultFSMaxFileSize, "Max file read size")

	return cmd
}

func runRules(cmd *cobra.Command, v *viper.Viper, files []string) error {
	ctx := cmd.Context()

	format := strings.ToLower(v.GetString("format"))
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q: use text, json or yaml", format)
	}

	results := hostfunc.NewResults()
	bundle, err := buildBundle(v, results)
	if err != nil {
		return err
	}

	env, err := executor.NewEnvironment(ctx, bundle, environmentOptions(v, files)...)
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}
	defer env.Close()

	var failures []scriptFailure
	for _, file := range files {
		if _, err := env.Run(ctx, file); err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("file", file).Msg("rule file failed")
			failures = append(failures, scriptFailure{File: file, Error: err.Error()})
		}
	}

	rep := newReport(results, failures)
	if err := writeReport(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}

	if results.Failed() || len(failures) > 0 {
		return errReviewFailed
	}
	return nil
}

func environmentOptions(v *viper.Viper, files []string) []executor.Option {
	opts := []executor.Option{
		executor.WithRootDir(absPath(v.GetString("root"))),
		executor.WithTimeout(v.GetDuration("timeout")),
		executor.WithSourceRewrite(v.GetBool("rewrite")),
	}

	if v.GetBool("ts") || hasExt(files, ".ts") {
		opts = append(opts, executor.WithLanguage(typescript.New()))
	}
	if setup := v.GetStringSlice("setup"); len(setup) > 0 {
		opts = append(opts, executor.WithSetupFiles(setup...))
	}
	if v.GetBool("cache") {
		opts = append(opts, executor.WithCache(v.GetString("cache-dir")))
	}
	if ignore := v.GetStringSlice("transform-ignore"); len(ignore) > 0 {
		opts = append(opts, executor.WithTransformIgnorePatterns(ignore...))
	}
	return opts
}

// buildBundle returns the review bundle plus whichever optional
// capabilities the flags enable.
func buildBundle(v *viper.Viper, results *hostfunc.Results) (*hostfunc.Bundle, error) {
	bundle := hostfunc.NewReviewBundle(results).
		MustRegister("semver", hostfunc.NewSemver())

	if v.GetBool("kv") {
		if err := bundle.Register("store", hostfunc.NewKVStore(hostfunc.DefaultKVConfig())); err != nil {
			return nil, err
		}
	}

	if hosts := v.GetStringSlice("allow-host"); len(hosts) > 0 {
		httpCap := hostfunc.NewHTTP(hostfunc.HTTPConfig{
			AllowedHosts: hosts,
			MaxURLLength: v.GetInt("http-max-url"),
			MaxBodySize:  v.GetInt64("http-max-body"),
			Retries:      v.GetUint("http-retries"),
		})
		if err := bundle.Register("http", httpCap); err != nil {
			return nil, err
		}
	}

	if specs := v.GetStringSlice("mount"); len(specs) > 0 {
		mounts := make([]hostfunc.Mount, 0, len(specs))
		for _, spec := range specs {
			m, err := parseMount(spec)
			if err != nil {
				return nil, err
			}
			mounts = append(mounts, m)
		}
		fsCap := hostfunc.NewFS(mounts, hostfunc.WithMaxFileSize(v.GetInt64("fs-max-file")))
		if err := bundle.Register("fs", fsCap); err != nil {
			return nil, err
		}
	}

	return bundle, nil
}

func parseMount(spec string) (hostfunc.Mount, error) {
	virtual, host, ok := strings.Cut(spec, ":")
	if !ok || virtual == "" || host == "" {
		return hostfunc.Mount{}, fmt.Errorf("invalid mount spec %q (expected virtual:host)", spec)
	}
	return hostfunc.Mount{VirtualPath: virtual, HostPath: host}, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func hasExt(files []string, ext string) bool {
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ext) {
			return true
		}
	}
	return false
}
