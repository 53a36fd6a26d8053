// Package main implements the vendor-qc CLI for checking vendor delivery archives.
package main

import (
	"os"

	"github.com/EmundoT/vendor-qc/cmd"
	"github.com/EmundoT/vendor-qc/internal/core"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(core.CLIExitCodeForError(err))
	}
}
