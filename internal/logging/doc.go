// Package logging holds the two output channels of volsync.
//
// The structured log is a log/slog logger configured once by Setup. It is
// quiet by default; -v enables debug records, which include every external
// command as a shell-quoted line, and --json switches to the JSON handler for
// log collectors:
//
//	logging.Setup(verbose, jsonOutput, os.Stderr)
//	logging.Debug("running command", "cmd", "useradd -u 1000 -m -- app")
//
// Operator output is a short, prefixed summary meant for container logs:
//
//	ℹ /data/app: user app (uid 1000), port 5001    UserInfo, stdout
//	✓ Configured 1 volume(s)                       UserSuccess, stdout
//	⚠ provisioning user app failed: ...            UserWarning, stderr
//	✗ ...                                          UserError, stderr
package logging
