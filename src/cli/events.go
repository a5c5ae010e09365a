package cli

import "github.com/please-build/cc-compile-action/src/cc"

// LogEventHandler implements cc.EventHandler by logging each event through
// the standard logger. It is the default EventHandler for a command-line
// build: warnings from the inclusion validator show up as WARNING log
// lines rather than failing the build outright.
type LogEventHandler struct{}

// Handle implements cc.EventHandler.
func (LogEventHandler) Handle(kind cc.EventKind, sourceLabel, message string) {
	switch kind {
	case cc.EventWarning:
		log.Warning("%s: %s", sourceLabel, message)
	default:
		log.Info("%s: %s", sourceLabel, message)
	}
}
