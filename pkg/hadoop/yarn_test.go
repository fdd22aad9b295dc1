package hadoop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeYarn writes an executable that appends its arguments to a log file so
// the test can observe each kill invocation.
func fakeYarn(t *testing.T, exitCode int) (binary, logFile string) {
	t.Helper()
	dir := t.TempDir()
	logFile = filepath.Join(dir, "calls.log")
	binary = filepath.Join(dir, "yarn")

	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %s\nexit %d\n", logFile, exitCode)
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake yarn: %v", err)
	}
	return binary, logFile
}

func calls(t *testing.T, logFile string) []string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestKillApplications(t *testing.T) {
	binary, logFile := fakeYarn(t, 0)
	c := &YarnClient{Binary: binary, Timeout: 5 * time.Second}

	c.KillApplications(context.Background(), "application_1684380000000_0042, application_1684380000000_0043,")

	got := calls(t, logFile)
	want := []string{
		"application -kill application_1684380000000_0042",
		"application -kill application_1684380000000_0043",
	}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKillApplications_FailureContinues(t *testing.T) {
	binary, logFile := fakeYarn(t, 1)
	c := &YarnClient{Binary: binary, Timeout: 5 * time.Second}

	// Both ids are attempted even though every kill fails.
	c.KillApplications(context.Background(), "application_1_1,application_1_2")

	if got := calls(t, logFile); len(got) != 2 {
		t.Errorf("calls = %v, want both ids attempted", got)
	}
}

func TestKillApplications_EmptyInput(t *testing.T) {
	binary, logFile := fakeYarn(t, 0)
	c := &YarnClient{Binary: binary, Timeout: 5 * time.Second}

	c.KillApplications(context.Background(), "")
	c.KillApplications(context.Background(), " , ,")

	if got := calls(t, logFile); got != nil {
		t.Errorf("calls = %v, want none", got)
	}
}
