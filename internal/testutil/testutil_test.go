package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestWriteStubWithExitCreatesExecutableWithRequestedExitCode(t *testing.T) {
	dir := t.TempDir()
	stubPath := filepath.Join(dir, "exit-stub")
	WriteStubWithExit(t, dir, "exit-stub", 7)

	info, err := os.Stat(stubPath)
	if err != nil {
		t.Fatalf("stat stub: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %#o", info.Mode().Perm())
	}

	cmd := exec.Command(stubPath)
	err = cmd.Run()
	if err == nil {
		t.Fatal("expected non-zero exit status")
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T", err)
	}
	if exitErr.ExitCode() != 7 {
		t.Fatalf("expected exit code 7, got %d", exitErr.ExitCode())
	}
}

func TestWriteStubExpectArgHonorsRequiredArg(t *testing.T) {
	dir := t.TempDir()
	stubPath := filepath.Join(dir, "arg-stub")
	WriteStubExpectArg(t, dir, "arg-stub", "--ready")

	if err := exec.Command(stubPath, "--ready").Run(); err != nil {
		t.Fatalf("expected success with required arg, got %v", err)
	}
	if err := exec.Command(stubPath, "--missing").Run(); err == nil {
		t.Fatal("expected non-zero exit without required arg")
	}
}
