// Package config provides settings and environment fallbacks for volsync.
//
// # Settings
//
// Settings holds every fixed path and default the run depends on. It is
// decoded from an optional TOML file over DefaultSettings():
//
//	supervisor_conf_dir = "/etc/supervisor.conf.d"
//	template_path       = "/etc/supervisor.unison.tpl.conf"
//	discovered_path     = "/volumes.yml"
//	base_port           = 5000
//	unison_defaults     = "-auto -batch -repeat watch"
//	command_timeout     = "2m"
//	sync_timeout        = "0s"   # no limit on the initial unison run
//
// A missing settings file is not an error; the defaults apply.
//
// # Environment
//
// Env captures the process-wide fallbacks once, at startup:
//
//	SYNC_USER             user owning every volume without an explicit user
//	SYNC_UID              uid for every volume without an explicit uid
//	SYNC_IGNORE           colon-separated ignore patterns
//	SYNC_UNISON_DEFAULTS  default unison flags
//
// A variable that is set to the empty string still counts as present.
package config
