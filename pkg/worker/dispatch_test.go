package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeinflow/skein/pkg/config"
	"github.com/skeinflow/skein/pkg/plugin"
	"github.com/skeinflow/skein/pkg/reporter"
	"github.com/skeinflow/skein/pkg/resource"
	"github.com/skeinflow/skein/pkg/rpc"
	"github.com/skeinflow/skein/pkg/runner"
	"github.com/skeinflow/skein/pkg/types"
)

type sentMessage struct {
	kind   types.MessageKind
	status types.ExecutionStatus
}

type fakeSender struct {
	mu    sync.Mutex
	sends []sentMessage
}

func (f *fakeSender) Send(ctx context.Context, taskCtx *types.TaskExecutionContext, masterAddress string, kind types.MessageKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMessage{kind: kind, status: taskCtx.CurrentExecutionStatus})
	return nil
}

func (f *fakeSender) recorded() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

// newTestWorker assembles a worker with its transport replaced by a fake
// sender; the consumer loop and servers are never started.
func newTestWorker() (*Worker, *fakeSender) {
	cfg := config.Default()
	cfg.NodeID = "test-node"

	sender := &fakeSender{}
	return &Worker{
		cfg: cfg,
		reporter: reporter.New(sender, nil, config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: config.Duration(time.Millisecond),
			MaxInterval:     config.Duration(5 * time.Millisecond),
		}),
		stager:   resource.NewStager(nil, false),
		registry: plugin.NewRegistry(),
		cache:    runner.NewCache(),
		queue:    runner.NewDelayQueue(),
	}, sender
}

func dispatchMsg(taskCtx *types.TaskExecutionContext) *rpc.DispatchMessage {
	return &rpc.DispatchMessage{
		MessageID: "msg-1",
		Kind:      rpc.DispatchTaskExecute,
		Context:   taskCtx,
	}
}

func TestHandleDispatch_EnqueuesTask(t *testing.T) {
	w, sender := newTestWorker()
	taskCtx := &types.TaskExecutionContext{
		TaskInstanceID:    42,
		ProcessInstanceID: 7,
		TaskType:          "SHELL",
	}

	w.handleDispatch(context.Background(), dispatchMsg(taskCtx))

	_, ok := w.cache.Get(42)
	assert.True(t, ok, "runner should be registered in the cache")
	assert.Equal(t, 1, w.queue.Size())
	assert.False(t, taskCtx.FirstSubmitTime.IsZero(), "first submit time is stamped on arrival")
	assert.Empty(t, sender.recorded(), "admission sends nothing, the runner reports")
}

func TestHandleDispatch_DelayedTask(t *testing.T) {
	w, _ := newTestWorker()
	taskCtx := &types.TaskExecutionContext{
		TaskInstanceID: 42,
		DelayMinutes:   10,
	}

	w.handleDispatch(context.Background(), dispatchMsg(taskCtx))

	assert.Equal(t, types.StatusDelayExecution, taskCtx.CurrentExecutionStatus)
	assert.Equal(t, 1, w.queue.Size())
}

func TestHandleDispatch_NilContextDropped(t *testing.T) {
	w, sender := newTestWorker()

	w.handleDispatch(context.Background(), &rpc.DispatchMessage{
		MessageID: "msg-1",
		Kind:      rpc.DispatchTaskExecute,
	})

	assert.Equal(t, 0, w.cache.Size())
	assert.Empty(t, sender.recorded())
}

func TestHandleDispatch_SchemaRejection(t *testing.T) {
	w, sender := newTestWorker()
	taskCtx := &types.TaskExecutionContext{
		TaskInstanceID: 42,
		TaskType:       "SHELL",
		RawParams:      `{"rawScript": 5}`,
		ParamSchema: `{
			"type": "object",
			"properties": {"rawScript": {"type": "string"}},
			"required": ["rawScript"]
		}`,
	}

	w.handleDispatch(context.Background(), dispatchMsg(taskCtx))

	assert.Equal(t, 0, w.cache.Size(), "rejected task must not be admitted")
	assert.Equal(t, 0, w.queue.Size())

	sends := sender.recorded()
	require.Len(t, sends, 1)
	assert.Equal(t, sentMessage{types.MessageTaskResult, types.StatusFailure}, sends[0])
	assert.Equal(t, taskCtx.StartTime, taskCtx.EndTime)
}

func TestHandleKill_WithdrawsQueuedTask(t *testing.T) {
	w, sender := newTestWorker()
	taskCtx := &types.TaskExecutionContext{
		TaskInstanceID: 42,
		DelayMinutes:   60,
	}
	w.handleDispatch(context.Background(), dispatchMsg(taskCtx))
	require.Equal(t, 1, w.queue.Size())

	w.handleKill(context.Background(), 42)

	assert.Equal(t, 0, w.queue.Size())
	assert.Equal(t, 0, w.cache.Size())
	assert.Equal(t, types.StatusKill, taskCtx.CurrentExecutionStatus)
	assert.False(t, taskCtx.EndTime.IsZero())

	sends := sender.recorded()
	require.Len(t, sends, 1)
	assert.Equal(t, sentMessage{types.MessageTaskResult, types.StatusKill}, sends[0])
}

func TestHandleKill_UnknownTask(t *testing.T) {
	w, sender := newTestWorker()

	w.handleKill(context.Background(), 999)

	assert.Empty(t, sender.recorded())
}

func TestHandleMessage_RoutesDispatch(t *testing.T) {
	w, _ := newTestWorker()
	raw, err := json.Marshal(rpc.DispatchMessage{
		MessageID: "msg-1",
		Kind:      rpc.DispatchTaskExecute,
		Context:   &types.TaskExecutionContext{TaskInstanceID: 42},
	})
	require.NoError(t, err)

	w.handleMessage(context.Background(), raw)

	_, ok := w.cache.Get(42)
	assert.True(t, ok)
}

func TestHandleMessage_MalformedDropped(t *testing.T) {
	w, _ := newTestWorker()

	// Neither may panic or admit anything.
	w.handleMessage(context.Background(), []byte("{not json"))
	w.handleMessage(context.Background(), nil)

	assert.Equal(t, 0, w.cache.Size())
}

func TestHandleMessage_UnknownKindDropped(t *testing.T) {
	w, _ := newTestWorker()
	raw, err := json.Marshal(map[string]any{"kind": "TASK_PAUSE"})
	require.NoError(t, err)

	w.handleMessage(context.Background(), raw)

	assert.Equal(t, 0, w.cache.Size())
}

func TestValidateParams(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {"rawScript": {"type": "string", "minLength": 1}},
		"required": ["rawScript"]
	}`

	tests := []struct {
		name    string
		taskCtx *types.TaskExecutionContext
		wantErr bool
	}{
		{
			name:    "no schema attached",
			taskCtx: &types.TaskExecutionContext{RawParams: `{"anything": true}`},
		},
		{
			name: "valid document",
			taskCtx: &types.TaskExecutionContext{
				RawParams:   `{"rawScript": "echo hi"}`,
				ParamSchema: schema,
			},
		},
		{
			name: "missing required field",
			taskCtx: &types.TaskExecutionContext{
				RawParams:   `{}`,
				ParamSchema: schema,
			},
			wantErr: true,
		},
		{
			name: "wrong type",
			taskCtx: &types.TaskExecutionContext{
				RawParams:   `{"rawScript": 5}`,
				ParamSchema: schema,
			},
			wantErr: true,
		},
		{
			name: "params not json",
			taskCtx: &types.TaskExecutionContext{
				RawParams:   `{broken`,
				ParamSchema: schema,
			},
			wantErr: true,
		},
		{
			name: "schema not compilable",
			taskCtx: &types.TaskExecutionContext{
				RawParams:   `{}`,
				ParamSchema: `{"type": 42}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateParams(tt.taskCtx)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
