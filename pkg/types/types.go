package types

import (
	"fmt"
	"time"
)

// ExecutionStatus is the lifecycle status of a task instance. The codes are
// part of the wire contract with the master and must not be renumbered.
type ExecutionStatus int

const (
	StatusSubmitted      ExecutionStatus = 0
	StatusRunning        ExecutionStatus = 1
	StatusFailure        ExecutionStatus = 6
	StatusSuccess        ExecutionStatus = 7
	StatusKill           ExecutionStatus = 9
	StatusDelayExecution ExecutionStatus = 12
)

// StatusOf maps a plugin exit code to an ExecutionStatus. Unknown codes are
// treated as failure so a misbehaving plugin can never report success.
func StatusOf(code int) ExecutionStatus {
	switch ExecutionStatus(code) {
	case StatusSubmitted, StatusRunning, StatusFailure, StatusSuccess, StatusKill, StatusDelayExecution:
		return ExecutionStatus(code)
	default:
		return StatusFailure
	}
}

func (s ExecutionStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusRunning:
		return "running"
	case StatusFailure:
		return "failure"
	case StatusSuccess:
		return "success"
	case StatusKill:
		return "kill"
	case StatusDelayExecution:
		return "delay_execution"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Code returns the numeric wire value.
func (s ExecutionStatus) Code() int { return int(s) }

// IsTerminal reports whether the status is a final state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusKill
}

// MessageKind identifies a lifecycle message sent to the master.
type MessageKind string

const (
	MessageTaskRunning MessageKind = "TASK_EXECUTE_RUNNING"
	MessageTaskResult  MessageKind = "TASK_EXECUTE_RESULT"
)

// WarningStrategy selects the alert flavour forwarded to the alert service.
type WarningStrategy int

const (
	WarningSuccess WarningStrategy = 1
	WarningFailure WarningStrategy = 2
)

// Property is a single named parameter. Two properties are the same
// parameter when their Prop matches; on merge the last write wins.
type Property struct {
	Prop  string `json:"prop"`
	Value string `json:"value"`
}

// TaskAlertInfo is what a plugin hands back when it wants an alert raised.
type TaskAlertInfo struct {
	AlertGroupID int    `json:"alertGroupId"`
	Title        string `json:"title"`
	Content      string `json:"content"`
}

// TaskExecutionContext is the unit of work a master dispatches to a worker.
// It is created by the master, mutated by exactly one TaskRunner during the
// run, and carried back to the master inside lifecycle messages.
type TaskExecutionContext struct {
	TaskInstanceID       int       `json:"taskInstanceId"`
	TaskName             string    `json:"taskName"`
	ProcessInstanceID    int       `json:"processInstanceId"`
	ProcessDefineCode    int64     `json:"processDefineCode"`
	ProcessDefineVersion int       `json:"processDefineVersion"`
	FirstSubmitTime      time.Time `json:"firstSubmitTime"`
	TaskAppID            string    `json:"taskAppId"`

	ScheduleTime *time.Time `json:"scheduleTime,omitempty"`
	DelayMinutes int        `json:"delayMinutes"`

	TaskType    string `json:"taskType"`
	ExecutePath string `json:"executePath"`
	EnvFile     string `json:"envFile"`
	DryRun      bool   `json:"dryRun"`

	// RawParams is the plugin-specific parameter document; ParamSchema, when
	// non-empty, is the JSON Schema it is validated against at dispatch.
	RawParams   string `json:"rawParams,omitempty"`
	ParamSchema string `json:"paramSchema,omitempty"`

	GlobalParams  string              `json:"globalParams,omitempty"`
	ParamsMap     map[string]Property `json:"paramsMap,omitempty"`
	DefinedParams map[string]string   `json:"definedParams,omitempty"`
	VarPool       string              `json:"varPool,omitempty"`

	// Resources maps resource file name to the tenant code that owns it in
	// the object store.
	Resources map[string]string `json:"resources,omitempty"`

	CurrentExecutionStatus ExecutionStatus `json:"currentExecutionStatus"`
	StartTime              time.Time       `json:"startTime"`
	EndTime                time.Time       `json:"endTime"`
	ProcessID              int             `json:"processId"`
	AppIDs                 string          `json:"appIds,omitempty"`
	TaskLogName            string          `json:"taskLogName,omitempty"`
}

// BuildTaskAppID derives the stable task application id used by external
// log and correlation systems.
func (c *TaskExecutionContext) BuildTaskAppID() string {
	return fmt.Sprintf("%d_%d", c.ProcessInstanceID, c.TaskInstanceID)
}

// BuildTaskLogName derives the canonical per-task log tag.
func (c *TaskExecutionContext) BuildTaskLogName() string {
	return fmt.Sprintf("%d_%d_%d_%d_%d",
		c.FirstSubmitTime.Unix(),
		c.ProcessDefineCode,
		c.ProcessDefineVersion,
		c.ProcessInstanceID,
		c.TaskInstanceID)
}

// Deadline is the instant the task becomes eligible to run.
func (c *TaskExecutionContext) Deadline() time.Time {
	return c.FirstSubmitTime.Add(time.Duration(c.DelayMinutes) * time.Minute)
}
