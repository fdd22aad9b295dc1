package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/plugin"
	"github.com/skeinflow/skein/pkg/types"
)

// TaskType is the registry key for the shell plugin.
const TaskType = "SHELL"

var (
	// setValuePattern captures variables a script publishes into the var
	// pool, e.g. echo '${setValue(foo=bar)}'.
	setValuePattern = regexp.MustCompile(`\$\{setValue\(([^)=]+)=([^)]*)\)\}`)

	// yarnAppPattern matches YARN application ids surfaced in script output.
	yarnAppPattern = regexp.MustCompile(`application_\d+_\d+`)
)

// params is the plugin-specific parameter document for shell tasks.
type params struct {
	RawScript string `json:"rawScript"`
}

// Channel creates shell tasks.
type Channel struct{}

// NewChannel returns the shell task channel.
func NewChannel() *Channel { return &Channel{} }

// CreateTask implements plugin.Channel.
func (c *Channel) CreateTask(taskCtx *types.TaskExecutionContext) (plugin.Task, error) {
	return &Task{taskCtx: taskCtx, parameters: &plugin.Parameters{}}, nil
}

// Task runs a user script through the system shell in its own process
// group so cancellation can take down the whole subtree.
type Task struct {
	taskCtx    *types.TaskExecutionContext
	parameters *plugin.Parameters
	scriptPath string

	mu        sync.Mutex
	cmd       *exec.Cmd
	cancelled bool

	exitCode int
	pid      int
	appIDs   []string
}

// Init parses the raw parameters and materializes the script file inside
// the execute path.
func (t *Task) Init() error {
	var p params
	if t.taskCtx.RawParams == "" {
		return fmt.Errorf("shell task %d has no parameters", t.taskCtx.TaskInstanceID)
	}
	if err := json.Unmarshal([]byte(t.taskCtx.RawParams), &p); err != nil {
		return fmt.Errorf("failed to parse shell task parameters: %w", err)
	}
	if strings.TrimSpace(p.RawScript) == "" {
		return fmt.Errorf("shell task %d has an empty script", t.taskCtx.TaskInstanceID)
	}

	if err := os.MkdirAll(t.taskCtx.ExecutePath, 0o755); err != nil {
		return fmt.Errorf("failed to create execute path: %w", err)
	}

	t.scriptPath = filepath.Join(t.taskCtx.ExecutePath,
		fmt.Sprintf("%s_node.sh", t.taskCtx.TaskAppID))

	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	if t.taskCtx.EnvFile != "" {
		fmt.Fprintf(&sb, ". %s\n", t.taskCtx.EnvFile)
	}
	sb.WriteString(p.RawScript)
	sb.WriteString("\n")

	if err := os.WriteFile(t.scriptPath, []byte(sb.String()), 0o755); err != nil {
		return fmt.Errorf("failed to write script file: %w", err)
	}
	return nil
}

// Handle executes the script and blocks until it exits or is cancelled.
func (t *Task) Handle(ctx context.Context) error {
	taskLog := log.WithTaskLogName(t.taskCtx.TaskLogName)

	cmd := exec.Command("sh", t.scriptPath)
	cmd.Dir = t.taskCtx.ExecutePath
	cmd.Env = t.buildEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		t.exitCode = types.StatusKill.Code()
		return fmt.Errorf("shell task %d cancelled before start", t.taskCtx.TaskInstanceID)
	}
	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start shell task: %w", err)
	}
	t.cmd = cmd
	t.pid = cmd.Process.Pid
	t.mu.Unlock()

	taskLog.Info().Int("pid", t.pid).Str("script", t.scriptPath).Msg("shell task started")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = t.CancelApplication(true)
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		taskLog.Info().Msg(line)
		t.collectOutput(line)
	}

	waitErr := cmd.Wait()
	close(done)

	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()

	switch {
	case cancelled:
		t.exitCode = types.StatusKill.Code()
		return fmt.Errorf("shell task %d was killed", t.taskCtx.TaskInstanceID)
	case waitErr != nil:
		t.exitCode = types.StatusFailure.Code()
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			taskLog.Warn().Int("exit_code", exitErr.ExitCode()).Msg("shell task exited non-zero")
			return nil
		}
		return fmt.Errorf("shell task wait failed: %w", waitErr)
	default:
		t.exitCode = types.StatusSuccess.Code()
		return nil
	}
}

// CancelApplication kills the process group. Safe to call repeatedly and
// concurrently with Handle.
func (t *Task) CancelApplication(force bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return nil
	}
	t.cancelled = true
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	// Negative pid targets the whole process group.
	if err := syscall.Kill(-t.cmd.Process.Pid, sig); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to signal process group %d: %w", t.cmd.Process.Pid, err)
	}
	return nil
}

func (t *Task) ExitStatus() plugin.ExitStatus { return plugin.ExitStatus{Code: t.exitCode} }
func (t *Task) ProcessID() int                { return t.pid }

// AppIDs returns the collected application ids. A kill may read them while
// Handle is still scanning output, so access goes through the mutex.
func (t *Task) AppIDs() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.appIDs, ",")
}

func (t *Task) Parameters() *plugin.Parameters {
	return t.parameters
}
func (t *Task) NeedAlert() bool                { return false }
func (t *Task) AlertInfo() types.TaskAlertInfo { return types.TaskAlertInfo{} }

// buildEnv layers the defined parameters over the inherited environment so
// scripts see workflow parameters as ordinary variables.
func (t *Task) buildEnv() []string {
	env := os.Environ()
	for k, v := range t.taskCtx.DefinedParams {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// collectOutput harvests var-pool assignments and YARN application ids from
// a line of script output. Runs on Handle's goroutine; the slices are
// guarded because AppIDs is readable from a concurrent kill.
func (t *Task) collectOutput(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range setValuePattern.FindAllStringSubmatch(line, -1) {
		t.parameters.VarPool = append(t.parameters.VarPool, types.Property{
			Prop:  strings.TrimSpace(m[1]),
			Value: m[2],
		})
	}
	for _, app := range yarnAppPattern.FindAllString(line, -1) {
		if !contains(t.appIDs, app) {
			t.appIDs = append(t.appIDs, app)
		}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
