package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/rulebox/hostfunc"
	"github.com/caffeineduck/rulebox/language/typescript"
)

func TestRunCollectsResults(t *testing.T) {
	fsys := newProject(t, map[string]string{"dangerfile.js": `warn("x")`})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	got, err := RunScript(context.Background(), "dangerfile.js", env)
	require.NoError(t, err)

	assert.Same(t, results, got)
	assert.Equal(t, []hostfunc.Violation{{Message: "x"}}, results.Warnings)
}

func TestRunKeepsPartialResultsOnThrow(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"dangerfile.js": `
			fail("first", "a.go", 3);
			throw new Error("boom");
			fail("never");
		`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	got, err := env.Run(context.Background(), "dangerfile.js")
	require.Error(t, err)

	var ex *goja.Exception
	require.ErrorAs(t, err, &ex)
	assert.Contains(t, ex.Error(), "boom")
	assert.Same(t, results, got)
	assert.Equal(t, []hostfunc.Violation{{Message: "first", File: "a.go", Line: 3}}, results.Fails)
}

func TestRunSequentialScriptsShareResults(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"rules/first.js":  `warn("from first")`,
		"rules/second.js": `warn("from second"); message("done")`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	_, err := env.Run(context.Background(), "rules/first.js")
	require.NoError(t, err)
	_, err = env.Run(context.Background(), filepath.Join(root, "rules/second.js"))
	require.NoError(t, err)

	assert.Equal(t, []hostfunc.Violation{{Message: "from first"}, {Message: "from second"}}, results.Warnings)
	assert.Equal(t, []hostfunc.Violation{{Message: "done"}}, results.Messages)
}

func TestRunCommentsOutSelfImport(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"default import", "import danger from \"danger\"\nwarn(\"x\")\n"},
		{"named import", "import { danger, warn } from \"danger\"\nwarn(\"x\")\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newProject(t, map[string]string{"dangerfile.js": tt.src})
			results := hostfunc.NewResults()
			env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

			_, err := env.Run(context.Background(), "dangerfile.js")
			require.NoError(t, err)
			assert.Len(t, results.Warnings, 1)

			onDisk, err := afero.ReadFile(fsys, filepath.Join(root, "dangerfile.js"))
			require.NoError(t, err)
			assert.Equal(t, tt.src, string(onDisk), "default mode must not touch the file")
		})
	}
}

func TestRunSourceRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dangerfile.js")
	src := "import danger from \"danger\"\nwarn(\"x\")\n"
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), path, []byte(src), 0o644))

	results := hostfunc.NewResults()
	env, err := NewEnvironment(context.Background(), hostfunc.NewReviewBundle(results),
		WithRootDir(dir),
		WithSourceRewrite(true),
	)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)

	onDisk, err := afero.ReadFile(afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Equal(t, CleanScriptSource(src), string(onDisk))

	// The second run sees an already cleaned file and leaves it alone.
	_, err = env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	again, err := afero.ReadFile(afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(again))
	assert.Len(t, results.Warnings, 2)
}

func TestRunRequire(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"lib/names.js":        `module.exports = { owner: "core" }`,
		"lib/checks/index.js": `exports.limit = 2`,
		"node_modules/fmt.js": `module.exports = (s) => "[" + s + "]"`,
		"dangerfile.js": `
			const names = require("./lib/names");
			const { limit } = require("./lib/checks");
			const fmt = require("fmt");
			message(fmt(names.owner + ":" + limit));
		`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, []hostfunc.Violation{{Message: "[core:2]"}}, results.Messages)
}

func TestRunESModuleImports(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"lib/rules.js": `export const owner = "core"; export default function shout(s) { return s.toUpperCase() }`,
		"dangerfile.js": `
			import shout, { owner } from "./lib/rules";
			message(shout(owner));
		`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, []hostfunc.Violation{{Message: "CORE"}}, results.Messages)
}

func TestRunRequireMissingModule(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"dangerfile.js": `warn("before"); require("./missing");`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not found")
	assert.Len(t, results.Warnings, 1)
}

func TestRunRequireCycle(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"a.js":          `exports.name = "a"; const b = require("./b"); exports.peer = b.name;`,
		"b.js":          `const a = require("./a"); exports.name = "b"; exports.sawA = a.name;`,
		"dangerfile.js": `const a = require("./a"); const b = require("./b"); message(a.peer + b.sawA);`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, []hostfunc.Violation{{Message: "ba"}}, results.Messages)
}

func TestRunEvaluatesModulesOncePerRun(t *testing.T) {
	var loads int
	fsys := newProject(t, map[string]string{
		"lib/counter.js": `tick(); module.exports = {}`,
		"dangerfile.js":  `require("./lib/counter"); require("./lib/counter.js");`,
	})
	bundle := hostfunc.NewBundle().MustRegister("tick", func() { loads++ })
	env := newEnvironment(t, fsys, bundle)

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.True(t, env.Loader().Loaded(filepath.Join(root, "lib/counter.js")))

	_, err = env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "module results are not kept across runs")
}

func TestRunSetupFiles(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"setup.js":      `globalThis.prefix = "ci"; message("setup")`,
		"dangerfile.js": `message(prefix + ": checked")`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results), WithSetupFiles("setup.js"))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Equal(t, []hostfunc.Violation{{Message: "setup"}, {Message: "ci: checked"}}, results.Messages)
}

func TestRunTypeScript(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"lib/limits.ts": `export const maxFiles: number = 10`,
		"dangerfile.ts": `
			import { danger } from "danger";
			import { maxFiles } from "./lib/limits";
			interface Change { file: string }
			const changes: Change[] = [{ file: "a.go" }];
			if (changes.length < maxFiles) {
				message(` + "`ok ${changes[0].file}`" + `);
			}
		`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results), WithLanguage(typescript.New()))

	_, err := env.Run(context.Background(), "dangerfile.ts")
	require.NoError(t, err)
	assert.Equal(t, []hostfunc.Violation{{Message: "ok a.go"}}, results.Messages)
}

func TestRunTransformIgnorePatterns(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"vendor/esm.js": `export const x = 1`,
		"dangerfile.js": `require("./vendor/esm")`,
	})
	env := newEnvironment(t, fsys, hostfunc.NewBundle(), WithTransformIgnorePatterns("/vendor/"))

	_, err := env.Run(context.Background(), "dangerfile.js")
	assert.Error(t, err, "untransformed ES module syntax cannot be evaluated")
}

func TestRunTransformCache(t *testing.T) {
	fsys := newProject(t, map[string]string{"dangerfile.js": `warn("cached")`})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results), WithCache("/cache"))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)

	entries, err := afero.ReadDir(fsys, "/cache/rulebox")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Len(t, results.Warnings, 2)

	require.NoError(t, env.ClearCache())
	exists, err := afero.DirExists(fsys, "/cache/rulebox")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunTimeout(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"spin.js": `warn("spinning"); for (;;) {}`,
		"ok.js":   `warn("after")`,
	})
	results := hostfunc.NewResults()
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(results), WithTimeout(50*time.Millisecond))

	_, err := env.Run(context.Background(), "spin.js")
	var interrupted *goja.InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.ErrorIs(t, interrupted.Value().(error), context.DeadlineExceeded)

	_, err = env.Run(context.Background(), "ok.js")
	require.NoError(t, err, "interrupt must be cleared after a run")
	assert.Equal(t, []hostfunc.Violation{{Message: "spinning"}, {Message: "after"}}, results.Warnings)
}

func TestRunContextCancel(t *testing.T) {
	fsys := newProject(t, map[string]string{"spin.js": `for (;;) {}`})
	env := newEnvironment(t, fsys, hostfunc.NewBundle())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := env.Run(ctx, "spin.js")
	var interrupted *goja.InterruptedError
	assert.ErrorAs(t, err, &interrupted)

	_, err = env.Run(ctx, "spin.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTimeoutCancelsHTTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fsys := newProject(t, map[string]string{
		"dangerfile.js": fmt.Sprintf(`warn("before"); http.get(%q); warn("after")`, server.URL),
	})
	results := hostfunc.NewResults()
	bundle := hostfunc.NewReviewBundle(results).
		MustRegister("http", hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"127.0.0.1"}}))
	env := newEnvironment(t, fsys, bundle, WithTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := env.Run(context.Background(), "dangerfile.js")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []hostfunc.Violation{{Message: "before"}}, results.Warnings)
}

func TestRunContextCancelsHTTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fsys := newProject(t, map[string]string{
		"dangerfile.js": fmt.Sprintf(`http.get(%q)`, server.URL),
	})
	bundle := hostfunc.NewBundle().
		MustRegister("http", hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"127.0.0.1"}}))
	env := newEnvironment(t, fsys, bundle)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := env.Run(ctx, "dangerfile.js")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunSyntaxErrorNamesFile(t *testing.T) {
	fsys := newProject(t, map[string]string{"dangerfile.js": `warn(`})
	env := newEnvironment(t, fsys, hostfunc.NewReviewBundle(hostfunc.NewResults()))

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "/repo/dangerfile.js:"), err.Error())
	assert.NotContains(t, err.Error(), "transform ")
}

func TestRunMissingScript(t *testing.T) {
	env := newEnvironment(t, newProject(t, nil), hostfunc.NewReviewBundle(hostfunc.NewResults()))

	_, err := env.Run(context.Background(), "nope.js")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunWithoutResultsMember(t *testing.T) {
	fsys := newProject(t, map[string]string{"dangerfile.js": `note("hi")`})
	var notes []string
	bundle := hostfunc.NewBundle().MustRegister("note", func(s string) { notes = append(notes, s) })
	env := newEnvironment(t, fsys, bundle)

	got, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{"hi"}, notes)
}

func TestRunHostCapabilities(t *testing.T) {
	fsys := newProject(t, map[string]string{
		"CHANGELOG.md": "## next\n",
		"dangerfile.js": `
			if (!fs.exists("/repo/CHANGELOG.md")) fail("no changelog");
			const log = fs.readFile("/repo/CHANGELOG.md");
			store.set("changelog", String(log.length));
			message("changelog " + store.get("changelog"));
			try { fs.readFile("/etc/passwd") } catch (e) { warn("denied") }
		`,
	})
	results := hostfunc.NewResults()
	bundle := hostfunc.NewReviewBundle(results).
		MustRegister("fs", hostfunc.NewFS([]hostfunc.Mount{{VirtualPath: "/repo", HostPath: root}}, hostfunc.WithFs(fsys))).
		MustRegister("store", hostfunc.NewKVStore(hostfunc.DefaultKVConfig()))
	env := newEnvironment(t, fsys, bundle)

	_, err := env.Run(context.Background(), "dangerfile.js")
	require.NoError(t, err)
	assert.Empty(t, results.Fails)
	assert.Equal(t, []hostfunc.Violation{{Message: "changelog 8"}}, results.Messages)
	assert.Equal(t, []hostfunc.Violation{{Message: "denied"}}, results.Warnings)
}
