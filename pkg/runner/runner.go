package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skeinflow/skein/pkg/hadoop"
	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/metrics"
	"github.com/skeinflow/skein/pkg/params"
	"github.com/skeinflow/skein/pkg/plugin"
	"github.com/skeinflow/skein/pkg/reporter"
	"github.com/skeinflow/skein/pkg/resource"
	"github.com/skeinflow/skein/pkg/types"
	"github.com/skeinflow/skein/pkg/workdir"
)

// Options wires a TaskRunner's collaborators and the process-wide flags it
// honors. Everything is passed explicitly; the runner reads no globals.
type Options struct {
	MasterAddress string
	Reporter      *reporter.Reporter
	Stager        *resource.Stager
	Registry      *plugin.Registry
	Cache         *Cache
	AppKiller     hadoop.AppKiller

	SystemEnvPath string
	DevelopMode   bool
}

// resultDeliveryTimeout bounds the terminal RESULT send. The send rides a
// context detached from the pool's, so a worker draining on shutdown can
// still report the tasks it finished.
const resultDeliveryTimeout = 30 * time.Second

// TaskRunner drives one task execution context through its lifecycle:
// staging, plugin execution, result reporting, and cleanup. Run is invoked
// by exactly one worker pool slot; Kill is the only method that may be
// called concurrently with it.
type TaskRunner struct {
	taskCtx *types.TaskExecutionContext
	opts    Options

	mu           sync.Mutex
	task         plugin.Task
	killed       bool
	handleCancel context.CancelFunc
}

// New creates a runner for one execution context.
func New(taskCtx *types.TaskExecutionContext, opts Options) *TaskRunner {
	return &TaskRunner{taskCtx: taskCtx, opts: opts}
}

// TaskInstanceID returns the id of the task instance this runner owns.
func (r *TaskRunner) TaskInstanceID() int { return r.taskCtx.TaskInstanceID }

// Context returns the execution context. The context must only be read
// concurrently; mutation belongs to the running slot.
func (r *TaskRunner) Context() *types.TaskExecutionContext { return r.taskCtx }

// Run executes the task to its terminal state. Exactly one RESULT message
// is dispatched per run, and for non-dry runs a RUNNING attempt always
// precedes it. Faults anywhere inside the run surface as FAILURE; cleanup
// never masks the primary outcome.
func (r *TaskRunner) Run(ctx context.Context) {
	taskCtx := r.taskCtx
	logger := log.WithTaskInstance(taskCtx.ProcessInstanceID, taskCtx.TaskInstanceID)

	if taskCtx.DryRun {
		r.runDry(ctx, logger)
		return
	}

	metrics.TasksRunning.Inc()
	defer metrics.TasksRunning.Dec()

	if err := r.execute(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("task execution failure")
		r.Kill()
		taskCtx.CurrentExecutionStatus = types.StatusFailure
		taskCtx.EndTime = time.Now()
		r.captureTaskOutputs()
	}

	// Terminal path, taken on success and failure alike: evict from the
	// cache, deliver the RESULT, clear the scratch directory.
	r.opts.Cache.Remove(taskCtx.TaskInstanceID)
	r.sendResult(ctx, taskCtx)
	workdir.Clear(taskCtx.ExecutePath, r.opts.DevelopMode)

	metrics.TaskResultsTotal.WithLabelValues(taskCtx.CurrentExecutionStatus.String()).Inc()
	if !taskCtx.StartTime.IsZero() && !taskCtx.EndTime.IsZero() {
		metrics.TaskDurationSeconds.Observe(taskCtx.EndTime.Sub(taskCtx.StartTime).Seconds())
	}
	logger.Info().Str("status", taskCtx.CurrentExecutionStatus.String()).Msg("task execution finished")
}

// runDry short-circuits the lifecycle: no staging, no plugin, a single
// RESULT message reporting success.
func (r *TaskRunner) runDry(ctx context.Context, logger zerolog.Logger) {
	taskCtx := r.taskCtx
	now := time.Now()
	taskCtx.CurrentExecutionStatus = types.StatusSuccess
	taskCtx.StartTime = now
	taskCtx.EndTime = now

	r.opts.Cache.Remove(taskCtx.TaskInstanceID)
	r.sendResult(ctx, taskCtx)
	metrics.TaskResultsTotal.WithLabelValues(taskCtx.CurrentExecutionStatus.String()).Inc()
	logger.Info().Msg("task dry run success")
}

// sendResult dispatches the terminal RESULT on a context that survives the
// caller's cancellation: a task that ran to its terminal state reports it
// even when the worker is already shutting down.
func (r *TaskRunner) sendResult(ctx context.Context, taskCtx *types.TaskExecutionContext) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultDeliveryTimeout)
	defer cancel()
	_ = r.opts.Reporter.Send(sendCtx, taskCtx, r.opts.MasterAddress, types.MessageTaskResult)
}

// execute is the fallible middle of the run: every step returns an error
// instead of throwing, and the first failure aborts the sequence.
func (r *TaskRunner) execute(ctx context.Context, logger zerolog.Logger) error {
	taskCtx := r.taskCtx

	if taskCtx.StartTime.IsZero() {
		taskCtx.StartTime = time.Now()
	}
	logger.Info().Str("execute_path", taskCtx.ExecutePath).Msg("task begins to execute")

	taskCtx.CurrentExecutionStatus = types.StatusRunning
	// The RUNNING attempt must be observable before the plugin starts.
	// Exhausted delivery is logged inside the reporter and does not stop
	// the task; the master reconciles by timeout.
	_ = r.opts.Reporter.Send(ctx, taskCtx, r.opts.MasterAddress, types.MessageTaskRunning)

	downloads, err := r.opts.Stager.PlanDownloads(taskCtx.ExecutePath, taskCtx.Resources)
	if err != nil {
		return err
	}
	if len(downloads) > 0 {
		if err := r.opts.Stager.Stage(ctx, taskCtx.ExecutePath, downloads); err != nil {
			metrics.ResourceDownloadsTotal.WithLabelValues("failure").Inc()
			return err
		}
		metrics.ResourceDownloadsTotal.WithLabelValues("success").Add(float64(len(downloads)))
	}

	taskCtx.EnvFile = r.opts.SystemEnvPath
	taskCtx.DefinedParams = params.BuildGlobalParamsMap(taskCtx.GlobalParams)
	if taskCtx.TaskAppID == "" {
		taskCtx.TaskAppID = taskCtx.BuildTaskAppID()
	}
	taskCtx.ParamsMap = params.PreBuildBusinessParams(taskCtx.ScheduleTime)

	channel, err := r.opts.Registry.Get(taskCtx.TaskType)
	if err != nil {
		return err
	}

	taskCtx.TaskLogName = taskCtx.BuildTaskLogName()
	taskLogger := log.WithTaskLogName(taskCtx.TaskLogName)

	task, err := channel.CreateTask(taskCtx)
	if err != nil {
		return fmt.Errorf("failed to create %s task: %w", taskCtx.TaskType, err)
	}

	handleCtx, err := r.arm(ctx, task)
	if err != nil {
		return err
	}
	defer r.disarm()

	if err := task.Init(); err != nil {
		return fmt.Errorf("task init failed: %w", err)
	}

	seedPool := parseVarPool(taskCtx.VarPool)
	task.Parameters().VarPool = seedPool

	if err := task.Handle(handleCtx); err != nil {
		return fmt.Errorf("task handle failed: %w", err)
	}

	if task.NeedAlert() {
		r.opts.Reporter.Alert(ctx, task.AlertInfo(), task.ExitStatus().Code)
	}

	taskCtx.CurrentExecutionStatus = types.StatusOf(task.ExitStatus().Code)
	taskCtx.EndTime = time.Now()
	taskCtx.ProcessID = task.ProcessID()
	taskCtx.AppIDs = task.AppIDs()
	// Merge the seeded pool with what the task produced so a plugin that
	// overwrites an upstream variable does not leave duplicate entries.
	taskCtx.VarPool = serializeVarPool(params.MergeProperties(seedPool, task.Parameters().VarPool))

	taskLogger.Info().
		Int("exit_code", task.ExitStatus().Code).
		Str("status", taskCtx.CurrentExecutionStatus.String()).
		Msg("task final status")
	return nil
}

// arm publishes the task instance and its cancellable handle context so a
// concurrent Kill can reach them. A kill that raced in before the task was
// created aborts the run here rather than starting doomed work.
func (r *TaskRunner) arm(ctx context.Context, task plugin.Task) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.killed {
		return nil, fmt.Errorf("task %d was killed before start", r.taskCtx.TaskInstanceID)
	}
	handleCtx, cancel := context.WithCancel(ctx)
	r.task = task
	r.handleCancel = cancel
	return handleCtx, nil
}

func (r *TaskRunner) disarm() {
	r.mu.Lock()
	cancel := r.handleCancel
	r.handleCancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Kill cancels the running task: the plugin is asked to cancel with force,
// and any recorded external applications are killed out of band. Kill is
// idempotent, never panics, and is safe to call from outside the executing
// slot; after it the runner proceeds through the normal reporting and
// cleanup path with FAILURE.
func (r *TaskRunner) Kill() {
	r.mu.Lock()
	if r.killed {
		r.mu.Unlock()
		return
	}
	r.killed = true
	task := r.task
	cancel := r.handleCancel
	r.mu.Unlock()

	logger := log.WithTaskInstance(r.taskCtx.ProcessInstanceID, r.taskCtx.TaskInstanceID)
	if cancel != nil {
		cancel()
	}
	if task == nil {
		return
	}
	if err := task.CancelApplication(true); err != nil {
		logger.Error().Err(err).Msg("failed to cancel task application")
	}

	appIDs := r.taskCtx.AppIDs
	if appIDs == "" {
		appIDs = task.AppIDs()
	}
	if appIDs != "" && r.opts.AppKiller != nil {
		r.opts.AppKiller.KillApplications(context.Background(), appIDs)
	}
}

// captureTaskOutputs best-effort copies pid and app ids from a partially
// executed task onto the context so the FAILURE report still carries them.
func (r *TaskRunner) captureTaskOutputs() {
	r.mu.Lock()
	task := r.task
	r.mu.Unlock()
	if task == nil {
		return
	}
	r.taskCtx.ProcessID = task.ProcessID()
	if ids := task.AppIDs(); ids != "" {
		r.taskCtx.AppIDs = ids
	}
}

func parseVarPool(varPool string) []types.Property {
	if varPool == "" {
		return nil
	}
	var props []types.Property
	if err := json.Unmarshal([]byte(varPool), &props); err != nil {
		logger := log.WithComponent("task-runner")
		logger.Warn().Err(err).Msg("failed to parse var pool, starting empty")
		return nil
	}
	return props
}

func serializeVarPool(props []types.Property) string {
	if len(props) == 0 {
		return ""
	}
	data, err := json.Marshal(props)
	if err != nil {
		logger := log.WithComponent("task-runner")
		logger.Warn().Err(err).Msg("failed to serialize var pool")
		return ""
	}
	return string(data)
}
