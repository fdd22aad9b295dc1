package plugin

import (
	"context"

	"github.com/skeinflow/skein/pkg/types"
)

// ExitStatus is the outcome a task reports after Handle returns. Code uses
// the execution status numbering shared with the master.
type ExitStatus struct {
	Code int
}

// Parameters is the per-task variable bag a plugin consumes and produces.
// VarPool is seeded from the execution context before Handle and read back
// after it, so variables survive across tasks of one workflow instance.
type Parameters struct {
	VarPool []types.Property
}

// Task is a single executable task instance produced by a Channel. The
// runner drives it strictly sequentially: Init, Handle, then the getters.
// CancelApplication is the one method that may be called concurrently with
// Handle and must be safe to call more than once.
type Task interface {
	Init() error

	// Handle blocks until the underlying process or remote job completes,
	// fails, or is cancelled. ctx cancellation must abort the work.
	Handle(ctx context.Context) error

	// CancelApplication stops the running work. With force set the task
	// must not wait for graceful termination.
	CancelApplication(force bool) error

	ExitStatus() ExitStatus
	ProcessID() int
	AppIDs() string
	Parameters() *Parameters
	NeedAlert() bool
	AlertInfo() types.TaskAlertInfo
}

// Channel creates task instances for one task type. A channel is stateless;
// all per-run state lives in the Task it creates.
type Channel interface {
	CreateTask(taskCtx *types.TaskExecutionContext) (Task, error)
}
