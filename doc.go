// Package rulebox runs review rule files in an isolated JavaScript scope.
//
// # Overview
//
// A host builds a capability bundle (the functions and values rule files may
// use), turns it into an environment, and runs rule files against that
// environment. Bundle members are plain globals inside the scope; nothing
// else from the host is visible.
//
// # Basic Usage
//
//	results := hostfunc.NewResults()
//	env, _ := executor.NewEnvironment(ctx, hostfunc.NewReviewBundle(results))
//	defer env.Close()
//
//	env.Run(ctx, "dangerfile.js")
//	fmt.Println(results.Warnings)
//
// # Enabling Capabilities
//
//	bundle := hostfunc.NewReviewBundle(results)
//
//	// Filesystem access
//	bundle.Register("fs", hostfunc.NewFS([]hostfunc.Mount{{VirtualPath: "/repo", HostPath: "."}}))
//
//	// HTTP access
//	bundle.Register("http", hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"api.github.com"}}))
//
//	// Key-value store
//	bundle.Register("store", hostfunc.NewKVStore(hostfunc.DefaultKVConfig()))
//
// See the [executor], [hostfunc], [modmap], [language/javascript] and
// [language/typescript] packages for detailed API documentation.
package rulebox
