package cmd

import (
	"github.com/firefly-engineering/volsync/internal/app"
	"github.com/firefly-engineering/volsync/internal/logging"
)

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)

// displayResult summarizes a run for the user.
func displayResult(r *app.Result) {
	if r == nil {
		return
	}

	if len(r.Volumes) == 0 {
		logInfo("No volumes to synchronize")
		return
	}

	for _, v := range r.Volumes {
		logInfo("%s: user %s (uid %d), port %d", v.Path, v.User, v.UID, v.Port)
	}
	for _, w := range r.Warnings {
		logWarning("%v", w)
	}

	if len(r.Warnings) > 0 {
		logWarning("Configured %d volume(s) with %d warning(s)", len(r.Volumes), len(r.Warnings))
		return
	}
	logSuccess("Configured %d volume(s)", len(r.Volumes))
}
