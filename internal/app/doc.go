// Package app wires the volsync pipeline together.
//
// An App owns the settings, the filesystem, the command executor and the
// SYNC_* environment of one run. Everything has a real default and can be
// replaced with an option, which is how tests run the whole pipeline against
// an in-memory filesystem:
//
//	a := app.New(
//	    app.WithFS(afero.NewMemMapFs()),
//	    app.WithExecutor(system.NewMockExecutor()),
//	    app.WithEnv(config.Env{}),
//	)
//	result, err := a.Run(ctx, "/etc/volsync/config.yml")
//
// Run returns classified errors from internal/errors so the caller can exit
// with the matching code. Failures that do not stop the run are listed in
// Result.Warnings.
package app
