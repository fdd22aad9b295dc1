package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/runner"
	"github.com/skeinflow/skein/pkg/rpc"
	"github.com/skeinflow/skein/pkg/types"
)

// handleMessage decodes and routes one message from the dispatch topic.
// Malformed messages are logged and dropped; a poisoned dispatch must not
// wedge the consumer.
func (w *Worker) handleMessage(ctx context.Context, raw []byte) {
	logger := log.WithComponent("dispatcher")

	var msg rpc.DispatchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Error().Err(err).Msg("undecodable dispatch message dropped")
		return
	}

	switch msg.Kind {
	case rpc.DispatchTaskExecute:
		w.handleDispatch(ctx, &msg)
	case rpc.DispatchTaskKill:
		w.handleKill(ctx, msg.TaskInstanceID)
	default:
		logger.Warn().Str("kind", string(msg.Kind)).Msg("unknown dispatch kind dropped")
	}
}

// handleDispatch admits a task: validates its parameters, registers the
// runner in the execution cache, and offers it to the delay queue.
func (w *Worker) handleDispatch(ctx context.Context, msg *rpc.DispatchMessage) {
	taskCtx := msg.Context
	if taskCtx == nil {
		dlog := log.WithComponent("dispatcher")
		dlog.Error().Str("message_id", msg.MessageID).
			Msg("dispatch without task context dropped")
		return
	}

	logger := log.WithTaskInstance(taskCtx.ProcessInstanceID, taskCtx.TaskInstanceID)

	masterAddress := msg.MasterAddress
	if masterAddress == "" {
		masterAddress = w.cfg.MasterAddress
	}

	if taskCtx.FirstSubmitTime.IsZero() {
		taskCtx.FirstSubmitTime = time.Now()
	}

	if err := validateParams(taskCtx); err != nil {
		logger.Warn().Err(err).Msg("task parameters rejected")
		taskCtx.CurrentExecutionStatus = types.StatusFailure
		now := time.Now()
		taskCtx.StartTime = now
		taskCtx.EndTime = now
		_ = w.reporter.Send(ctx, taskCtx, masterAddress, types.MessageTaskResult)
		return
	}

	r := runner.New(taskCtx, runner.Options{
		MasterAddress: masterAddress,
		Reporter:      w.reporter,
		Stager:        w.stager,
		Registry:      w.registry,
		Cache:         w.cache,
		AppKiller:     w.killer,
		SystemEnvPath: w.cfg.SystemEnvPath,
		DevelopMode:   w.cfg.DevelopMode,
	})

	if taskCtx.DelayMinutes > 0 {
		taskCtx.CurrentExecutionStatus = types.StatusDelayExecution
		logger.Info().Int("delay_minutes", taskCtx.DelayMinutes).Msg("task enqueued with delayed start")
	} else {
		logger.Info().Msg("task enqueued")
	}

	w.cache.Register(r)
	w.queue.Offer(r)
}

// handleKill routes a master-initiated cancellation to the owning runner.
// A task still waiting in the delay queue is withdrawn and reported as
// killed without ever starting.
func (w *Worker) handleKill(ctx context.Context, taskInstanceID int) {
	logger := log.WithComponent("dispatcher")

	r, ok := w.cache.Get(taskInstanceID)
	if !ok {
		logger.Warn().Int("task_instance_id", taskInstanceID).
			Msg("kill for unknown task instance, already finished or never arrived")
		return
	}

	if w.queue.Remove(r) {
		// Never started: report the terminal state ourselves since no slot
		// will run the state machine for it.
		taskCtx := r.Context()
		taskCtx.CurrentExecutionStatus = types.StatusKill
		now := time.Now()
		if taskCtx.StartTime.IsZero() {
			taskCtx.StartTime = now
		}
		taskCtx.EndTime = now
		w.cache.Remove(taskInstanceID)
		_ = w.reporter.Send(ctx, taskCtx, w.cfg.MasterAddress, types.MessageTaskResult)
		logger.Info().Int("task_instance_id", taskInstanceID).Msg("delayed task withdrawn and reported killed")
		return
	}

	r.Kill()
	logger.Info().Int("task_instance_id", taskInstanceID).Msg("kill signalled to running task")
}

// validateParams checks the raw parameter document against the dispatch's
// JSON Schema when one is attached.
func validateParams(taskCtx *types.TaskExecutionContext) error {
	if taskCtx.ParamSchema == "" {
		return nil
	}

	schema, err := jsonschema.CompileString("param-schema.json", taskCtx.ParamSchema)
	if err != nil {
		return fmt.Errorf("invalid parameter schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal([]byte(taskCtx.RawParams), &doc); err != nil {
		return fmt.Errorf("task parameters are not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("task parameters failed schema validation: %w", err)
	}
	return nil
}
