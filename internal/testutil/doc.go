// Package testutil provides an in-memory environment for tests.
//
// A TestEnv bundles an afero in-memory filesystem, settings pointing into it
// and a FakeUserDB executor. The FakeUserDB applies useradd and usermod to the
// passwd file on that filesystem, so provisioning can be checked end to end
// and run twice to prove it converges.
//
// # Usage in Tests
//
//	func TestEnsure(t *testing.T) {
//	    env := testutil.NewTestEnv(t)
//	    env.AddUser("app", 1000)
//
//	    p := provision.New(env.Fs, env.Exec, env.Settings)
//	    if _, err := p.Ensure(ctx, "app", &uid); err != nil {
//	        t.Fatal(err)
//	    }
//	}
package testutil
