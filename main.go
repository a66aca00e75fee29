package main

import (
	"os"

	"github.com/firefly-engineering/volsync/cmd"
	"github.com/firefly-engineering/volsync/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
