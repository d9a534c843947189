package execution

import (
	"log/slog"
	"time"

	"github.com/dshills/vizier/pkg/workflow"
)

// Outcomes reported for each module the engine visits.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeRebuilt = "rebuilt"
	OutcomeKept    = "kept"
	OutcomeBlanked = "blanked"
	OutcomeCopied  = "copied"
)

// Observer receives one event per visited module. It is the hook used by
// the metrics package.
type Observer interface {
	ModuleVisited(pkg, outcome string, duration time.Duration)
	RunCompleted(duration time.Duration)
}

// Logger writes execution events to a structured logger and forwards them
// to an optional observer.
type Logger struct {
	log      *slog.Logger
	observer Observer
}

// NewLogger creates an execution logger.
func NewLogger(log *slog.Logger, observer Observer) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log.With("component", "execution"), observer: observer}
}

// LogModule records the outcome of a visited module.
func (l *Logger) LogModule(pos int, m *workflow.Module, outcome string, duration time.Duration) {
	attrs := []any{
		"module", m.ID,
		"position", pos,
		"package", m.Command.Package,
		"command", m.Command.Command,
		"outcome", outcome,
		"duration", duration,
	}
	if outcome == OutcomeError {
		// Execution errors are captured into the module, never propagated.
		l.log.Warn("module execution failed", append(attrs, "error", firstLine(m.Stderr))...)
	} else {
		l.log.Debug("module visited", attrs...)
	}
	if l.observer != nil {
		l.observer.ModuleVisited(m.Command.Package, outcome, duration)
	}
}

// LogRun records a completed run.
func (l *Logger) LogRun(modules, modifiedIndex int, hasError bool, duration time.Duration) {
	l.log.Debug("workflow run completed",
		"modules", modules,
		"modified_index", modifiedIndex,
		"has_error", hasError,
		"duration", duration,
	)
	if l.observer != nil {
		l.observer.RunCompleted(duration)
	}
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
