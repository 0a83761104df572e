// Package renderer wraps the external report-rendering collaborator. The
// renderer is expected to produce the patient's HTML report at the artifact
// locator's computed path as a side effect; the contract is best-effort,
// synchronous, and may fail with an opaque error.
package renderer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Renderer produces the HTML report for one patient id.
type Renderer interface {
	Render(ctx context.Context, id string) error
}

// Func adapts a function to the Renderer interface.
type Func func(ctx context.Context, id string) error

func (f Func) Render(ctx context.Context, id string) error { return f(ctx, id) }

// Command invokes a configured external command with the patient id
// appended as the final argument. It blocks until the command exits; there
// is no timeout layer beyond the caller's context.
type Command struct {
	Argv []string // command and fixed arguments
	Dir  string
}

func NewCommand(argv []string, dir string) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("renderer command is empty")
	}
	return &Command{Argv: argv, Dir: dir}, nil
}

func (c *Command) Render(ctx context.Context, id string) error {
	args := append(append([]string(nil), c.Argv[1:]...), id)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("renderer %s: %v: %s", c.Argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
