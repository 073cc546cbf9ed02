package backup

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newClone creates a bare remote with one commit on main and returns the
// path of a working clone.
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

func commitCount(t *testing.T, repo string) int {
	t.Helper()
	out, err := exec.Command("git", "-C", repo, "rev-list", "--count", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("rev-list output %q: %v", out, err)
	}
	return n
}

func TestGitDestination(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "snapshots/board.jsonl", "main")
	ctx := context.Background()

	data1 := []byte(`{"version":"1","type":"header"}` + "\n")
	if err := dest.Write(ctx, snapshotOf(data1)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "snapshots", "board.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, data1) {
		t.Fatalf("file content mismatch: got %q", got)
	}
	if n := commitCount(t, repo); n != 2 {
		t.Fatalf("commits = %d, want 2", n)
	}

	// Unchanged snapshot commits nothing.
	if err := dest.Write(ctx, snapshotOf(data1)); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n := commitCount(t, repo); n != 2 {
		t.Fatalf("commits after no-op = %d, want 2", n)
	}

	data2 := []byte(`{"version":"1","type":"header","note_count":1}` + "\n")
	if err := dest.Write(ctx, snapshotOf(data2)); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := commitCount(t, repo); n != 3 {
		t.Fatalf("commits after change = %d, want 3", n)
	}
}

func TestGitDestination_CommitMessage(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "board.jsonl", "main")

	snap, err := TakeSnapshot(context.Background(), seededStore(t, "a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := exec.Command("git", "-C", repo, "log", "-1", "--format=%B").Output()
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	msg := string(out)
	if !strings.Contains(msg, "3 notes") || !strings.Contains(msg, snap.DigestHex()) {
		t.Errorf("commit message = %q", msg)
	}
}

func TestGitDestination_Compressed(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "board.jsonl.zst", "main")

	data := []byte(strings.Repeat(`{"type":"note"}`+"\n", 20))
	if err := dest.Write(context.Background(), snapshotOf(data)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "board.jsonl.zst"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.Equal(got, data) {
		t.Fatal("snapshot stored uncompressed")
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
