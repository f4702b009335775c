// Package executor builds isolated script environments and runs rule files
// in them.
//
// # Overview
//
// An [Environment] owns a fresh JavaScript runtime whose globals are exactly
// the members of a [hostfunc.Bundle], plus a [ModuleLoader] that resolves,
// transforms and evaluates CommonJS modules against that runtime. Rule files
// call capabilities as bare identifiers and never import them.
//
// # Basic Usage
//
//	results := hostfunc.NewResults()
//	env, err := executor.NewEnvironment(ctx, hostfunc.NewReviewBundle(results),
//	    executor.WithRootDir("."),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	if _, err := env.Run(ctx, "dangerfile.js"); err != nil {
//	    log.Print(err) // results still holds what ran before the error
//	}
//	fmt.Println(results.Warnings)
//
// Many rule files may run against one environment. They share the bundle
// and so the same results.
//
// # Self-imports
//
// Rule files written for a published capability module often start with
// "import danger from ..." or "import { danger } ...". [CleanScriptSource]
// comments those lines out before loading, since the members are already
// globals. By default only the in-memory copy changes;
// [WithSourceRewrite] writes the cleaned text back to the file.
//
// # Languages
//
// Modules are transformed by the first [TransformRule] whose pattern matches
// their path. JavaScript is configured by default; add TypeScript with
// [WithLanguage].
package executor
