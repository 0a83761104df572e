// Package publish propagates local artifact changes to the remote-hosted
// copy via a stage-commit-push cycle, and keeps a persistent journal of
// every attempt so persistent failures are observable.
package publish

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of one publish attempt. Detail carries the remote
// tool's diagnostic text on failure so callers can distinguish "nothing to
// sync" from genuine authentication or network failure.
type Result struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Publisher runs one stage-commit-push cycle. A publish failure never
// reverts local artifact or row changes.
type Publisher interface {
	Publish(ctx context.Context, message string) Result
}

// Func adapts a function to the Publisher interface.
type Func func(ctx context.Context, message string) Result

func (f Func) Publish(ctx context.Context, message string) Result { return f(ctx, message) }

// Runner executes one external command and returns its combined output.
// The indirection keeps the git CLI behind a seam tests can fake.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Git publishes through the version-control CLI: stage all working-tree
// changes, commit with the given message, push to the configured
// remote/branch. Commit failure is swallowed ("nothing to commit" is the
// common case); success is decided solely by the push.
type Git struct {
	Dir    string
	Remote string
	Branch string
	Run    Runner
}

func NewGit(dir, remote, branch string) *Git {
	return &Git{Dir: dir, Remote: remote, Branch: branch, Run: ExecRunner{}}
}

func (g *Git) Publish(ctx context.Context, message string) Result {
	if out, err := g.Run.Run(ctx, g.Dir, "git", "add", "."); err != nil {
		return Result{OK: false, Detail: fmt.Sprintf("stage failed: %v: %s", err, strings.TrimSpace(out))}
	}

	// Tolerated: commits with a clean tree exit non-zero.
	_, _ = g.Run.Run(ctx, g.Dir, "git", "commit", "-m", message)

	out, err := g.Run.Run(ctx, g.Dir, "git", "push", "-u", g.Remote, g.Branch)
	if err != nil {
		return Result{OK: false, Detail: fmt.Sprintf("push failed: %s", strings.TrimSpace(out))}
	}
	return Result{OK: true, Detail: "synced to remote"}
}
