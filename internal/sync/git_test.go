package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newClone creates a bare remote with one commit on main and returns a
// working clone of it.
func newClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "branch", "-m", "main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir
}

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	out, err := exec.Command("git", "-C", dir, "rev-list", "--count", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("parse commit count %q: %v", out, err)
	}
	return n
}

func TestGitDestination(t *testing.T) {
	repoDir := newClone(t)
	dest := NewGitDestination(repoDir, "flags.jsonl", "main")
	ctx := context.Background()

	snap1 := Snapshot{ID: "snap-1", Flags: 1, Data: []byte(`{"type":"header","id":"snap-1"}` + "\n" + `{"type":"flag"}` + "\n")}
	if err := dest.Write(ctx, snap1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "flags.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(snap1.Data) {
		t.Fatalf("file content mismatch: got %q", string(got))
	}
	commits := commitCount(t, repoDir)

	// Same flags under a new header is not a change.
	snap2 := Snapshot{ID: "snap-2", Flags: 1, Data: []byte(`{"type":"header","id":"snap-2"}` + "\n" + `{"type":"flag"}` + "\n")}
	if err := dest.Write(ctx, snap2); err != nil {
		t.Fatalf("second write (no-op): %v", err)
	}
	if n := commitCount(t, repoDir); n != commits {
		t.Fatalf("expected no new commit, have %d (was %d)", n, commits)
	}

	snap3 := Snapshot{ID: "snap-3", Flags: 0, Data: []byte(`{"type":"header","id":"snap-3"}` + "\n")}
	if err := dest.Write(ctx, snap3); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := commitCount(t, repoDir); n != commits+1 {
		t.Fatalf("expected one new commit, have %d (was %d)", n, commits)
	}
	msg, err := exec.Command("git", "-C", repoDir, "log", "-1", "--format=%s").Output()
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	if strings.TrimSpace(string(msg)) != "grapio: snapshot snap-3 (0 flags)" {
		t.Fatalf("unexpected commit message %q", msg)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repoDir := newClone(t)
	dest := NewGitDestination(repoDir, "data/flags.jsonl", "main")

	snap := Snapshot{ID: "snap-x", Data: []byte(`{"type":"header"}` + "\n")}
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "data", "flags.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(snap.Data) {
		t.Fatalf("content mismatch: got %q", string(got))
	}
}

func TestGitDestination_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
	dest := NewGitDestination(t.TempDir(), "flags.jsonl", "main")
	if err := dest.Write(context.Background(), Snapshot{Data: []byte("{}\n")}); err == nil {
		t.Fatal("expected error outside a git repository")
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}
