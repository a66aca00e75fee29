// Package errors classifies volsync failures into process exit codes.
//
// Internal packages return plain errors and sentinels. The orchestrator wraps
// them in a VolsyncError whose Code is the exit status, and main exits with
// GetExitCode(err). Wrapping keeps the cause reachable with Is and As.
//
//	code  class                 raised when
//	0     success
//	1     general               anything unclassified
//	2     ConfigParseError      the volume or discovery file is unreadable
//	3     MissingUID            no uid in the config file or SYNC_UID
//	4     UnsupportedBackend    ignore string requested for an unknown tool
//	5     ProvisionFailed       useradd, usermod or chown failed
//	6     TemplateError         the supervisor template cannot be rendered
//	7     ConfigError           settings or SYNC_* values are invalid
//
// Provisioning failures do not stop a run. They are returned as warnings
// carrying code 5 and the process still exits 0.
package errors
