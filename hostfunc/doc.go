// Package hostfunc provides the host values rule files can reach.
//
// A [Bundle] is an ordered set of named values. When an environment is built
// from a bundle, every member becomes a bare global inside the script, so a
// member named "warn" is called as warn("...") without any import.
//
// # Review Bundle
//
// [NewReviewBundle] wires the conventional review capabilities to a
// [Results] accumulator:
//
//	results := hostfunc.NewResults()
//	bundle := hostfunc.NewReviewBundle(results)
//	// scripts may now call fail, warn, message and markdown
//
// The accumulator is registered under [ResultsKey] and is the value an
// executor hands back after a run.
//
// # Optional Capabilities
//
// Filesystem: read-only access to mounted directories via [FS], including
// content type sniffing with FS.FileType.
//
//	bundle.Register("fs", hostfunc.NewFS([]hostfunc.Mount{
//	    {VirtualPath: "/repo", HostPath: "."},
//	}))
//
// HTTP: requests to allowlisted hosts via [HTTP]. Idempotent requests can
// be retried with backoff.
//
//	bundle.Register("http", hostfunc.NewHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.github.com"},
//	}))
//
// Key-value store: a [KVStore] shared by all rule files of one session.
//
// Versions: [Semver] compares, checks and bumps semantic versions.
//
// Nothing outside the bundle is visible to scripts.
package hostfunc
