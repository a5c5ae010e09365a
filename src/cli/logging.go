// Package cli provides the terminal-facing pieces a compile action needs:
// logging setup and an EventHandler that turns validator warnings into log
// lines.
package cli

import (
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// InitLogging sets up a single stderr backend at the given verbosity.
func InitLogging(level logging.Level) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.MustStringFormatter("%{color}%{time:15:04:05.000} %{level:-7s}%{color:reset} %{message}")
	formatted := logging.NewBackendFormatter(backend, formatter)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}
