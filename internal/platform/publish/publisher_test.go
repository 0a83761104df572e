package publish

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeRunner scripts the outcome of each git subcommand.
type fakeRunner struct {
	calls   [][]string
	results map[string]struct {
		out string
		err error
	}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: make(map[string]struct {
		out string
		err error
	})}
}

func (r *fakeRunner) set(sub, out string, err error) {
	r.results[sub] = struct {
		out string
		err error
	}{out, err}
}

func (r *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	call := append([]string{name}, args...)
	r.calls = append(r.calls, call)
	res := r.results[args[0]]
	return res.out, res.err
}

func newTestGit(run Runner) *Git {
	return &Git{Dir: ".", Remote: "origin", Branch: "master", Run: run}
}

func TestGit_Publish_Success(t *testing.T) {
	run := newFakeRunner()
	g := newTestGit(run)

	res := g.Publish(context.Background(), "Update report for patient 7")
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}

	if len(run.calls) != 3 {
		t.Fatalf("expected add/commit/push, got %v", run.calls)
	}
	if run.calls[0][1] != "add" || run.calls[1][1] != "commit" || run.calls[2][1] != "push" {
		t.Errorf("unexpected call order: %v", run.calls)
	}
	if got := run.calls[1][3]; got != "Update report for patient 7" {
		t.Errorf("commit message = %q", got)
	}
	if got := run.calls[2]; got[3] != "origin" || got[4] != "master" {
		t.Errorf("push target = %v", got)
	}
}

func TestGit_Publish_NothingToCommit(t *testing.T) {
	run := newFakeRunner()
	// A clean tree makes commit exit non-zero; the publish must not care.
	run.set("commit", "nothing to commit, working tree clean", errors.New("exit status 1"))
	g := newTestGit(run)

	res := g.Publish(context.Background(), "Delete patient 7")
	if !res.OK {
		t.Fatalf("commit failure must be tolerated, got %+v", res)
	}
}

func TestGit_Publish_PushFailure(t *testing.T) {
	run := newFakeRunner()
	run.set("push", "fatal: could not read Username", errors.New("exit status 128"))
	g := newTestGit(run)

	res := g.Publish(context.Background(), "Update report for patient 7")
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Detail, "could not read Username") {
		t.Errorf("detail %q missing the git diagnostic", res.Detail)
	}
}

func TestGit_Publish_StageFailure(t *testing.T) {
	run := newFakeRunner()
	run.set("add", "fatal: not a git repository", errors.New("exit status 128"))
	g := newTestGit(run)

	res := g.Publish(context.Background(), "msg")
	if res.OK {
		t.Fatal("expected failure")
	}
	if len(run.calls) != 1 {
		t.Errorf("publish continued after stage failure: %v", run.calls)
	}
}
