package rpc

import (
	"time"

	"github.com/skeinflow/skein/pkg/types"
)

// DispatchKind discriminates messages arriving on the dispatch topic.
type DispatchKind string

const (
	DispatchTaskExecute DispatchKind = "TASK_DISPATCH"
	DispatchTaskKill    DispatchKind = "TASK_KILL"
)

// DispatchMessage is what a master publishes to hand a task to the worker
// group, or to cancel one it handed out earlier.
type DispatchMessage struct {
	MessageID      string                      `json:"messageId"`
	Kind           DispatchKind                `json:"kind"`
	MasterAddress  string                      `json:"masterAddress"`
	Context        *types.TaskExecutionContext `json:"context,omitempty"`
	TaskInstanceID int                         `json:"taskInstanceId,omitempty"`
}

// StatusMessage is the envelope for task lifecycle messages published to
// the master's status topic. MessageID lets the master dedup the
// at-least-once delivery.
type StatusMessage struct {
	MessageID     string                      `json:"messageId"`
	Kind          types.MessageKind           `json:"kind"`
	MasterAddress string                      `json:"masterAddress"`
	WorkerNodeID  string                      `json:"workerNodeId"`
	SentAt        time.Time                   `json:"sentAt"`
	Context       *types.TaskExecutionContext `json:"context"`
}

// AlertMessage is the envelope forwarded to the alert service topic.
type AlertMessage struct {
	MessageID    string                `json:"messageId"`
	WorkerNodeID string                `json:"workerNodeId"`
	AlertGroupID int                   `json:"alertGroupId"`
	Title        string                `json:"title"`
	Content      string                `json:"content"`
	Strategy     types.WarningStrategy `json:"strategy"`
	SentAt       time.Time             `json:"sentAt"`
}

// Heartbeat is the periodic liveness report a worker publishes so masters
// can track capacity and spot dead nodes.
type Heartbeat struct {
	MessageID    string    `json:"messageId"`
	NodeID       string    `json:"nodeId"`
	QueueDepth   int       `json:"queueDepth"`
	RunningTasks int       `json:"runningTasks"`
	ExecThreads  int       `json:"execThreads"`
	SentAt       time.Time `json:"sentAt"`
}
