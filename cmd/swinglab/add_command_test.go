package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"swinglab/internal/queue"
	"swinglab/internal/testsupport"
)

func TestAddSpoolsWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.baseDir, "fade-drill.mp4")
	testsupport.WriteFile(t, source, 2048)

	out, _, err := runCLI(t, []string{"add", source}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued fade-drill.mp4")
	requireContains(t, out, "daemon not running")

	jobs, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.SourceName != "fade-drill.mp4" {
		t.Fatalf("unexpected source name %q", job.SourceName)
	}
	if filepath.Dir(job.ArtifactPath) != env.cfg.Paths.SpoolDir {
		t.Fatalf("artifact %s not under spool dir %s", job.ArtifactPath, env.cfg.Paths.SpoolDir)
	}
	if _, err := os.Stat(job.ArtifactPath); err != nil {
		t.Fatalf("spooled artifact missing: %v", err)
	}
	if info, err := os.Stat(source); err != nil || info.Size() != 2048 {
		t.Fatalf("source recording should be untouched: %v", err)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"add", filepath.Join(env.baseDir, "missing.mp4")}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for missing recording")
	}

	dir := filepath.Join(env.baseDir, "recordings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"add", dir}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for directory argument")
	}

	notes := filepath.Join(env.baseDir, "notes.txt")
	testsupport.WriteFile(t, notes, 16)
	if _, _, err := runCLI(t, []string{"add", notes}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
