// Package transform implements the script executor. A script is a list of
// expr-lang statements, one per line. A statement is either an expression
// or an assignment "name = expression"; assigned names persist in the
// interpreter globals and are visible to later script modules of the same
// run. Lines starting with '#' are comments.
//
// Scripts reach datasets through the dataset client functions:
//
//	people = get_dataset("people")
//	update_dataset("people", set_cell(people, "Age", 0, "28"))
//	print(len(people.Rows))
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/workflow"
)

// Interpreter executes script modules.
type Interpreter struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithTimeout bounds the evaluation of each statement.
func WithTimeout(d time.Duration) Option {
	return func(i *Interpreter) { i.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

// NewInterpreter creates a script interpreter.
func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "script")
	return i
}

var _ execution.Executor = (*Interpreter)(nil)

var assignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)

// Execute runs the source of a script module.
func (i *Interpreter) Execute(ctx context.Context, cmd workflow.ModuleSpecification, task *execution.TaskContext) (*execution.Result, error) {
	if cmd.Command != workflow.ScriptCode {
		return nil, fmt.Errorf("unknown script command '%s'", cmd.Command)
	}
	source, err := cmd.StringArg(workflow.ArgSource)
	if err != nil {
		return nil, err
	}
	if task.Globals == nil {
		task.Globals = make(map[string]interface{})
	}

	s := newSession(ctx, task)
	eval := newEvaluator(i.timeout, s.functions()...)

	statements := 0
	for n, line := range strings.Split(source, "\n") {
		stmt := strings.TrimSpace(line)
		if stmt == "" || strings.HasPrefix(stmt, "#") {
			continue
		}

		target := ""
		if m := assignment.FindStringSubmatch(stmt); m != nil {
			target, stmt = m[1], strings.TrimSpace(m[2])
			if isReserved(target) {
				return nil, fmt.Errorf("line %d: cannot assign to builtin '%s'", n+1, target)
			}
		}

		statements++
		s.err = nil
		value, err := eval.Evaluate(ctx, stmt, s.env())
		if err != nil {
			if s.err != nil {
				err = s.err
			}
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		if target != "" {
			task.Globals[target] = value
		}
	}

	i.logger.Debug("script executed", "statements", statements, "volatile", task.Volatile)
	return execution.Success(s.client.Bindings(), s.stdout...), nil
}

// env returns the variables visible to a statement.
func (s *session) env() map[string]interface{} {
	env := make(map[string]interface{}, len(s.globals))
	for k, v := range s.globals {
		env[k] = v
	}
	return env
}
