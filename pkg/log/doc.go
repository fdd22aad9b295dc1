/*
Package log provides structured logging for the Skein worker using zerolog.

It wraps zerolog with a process-global logger configured once via Init, plus
helpers that derive child loggers with standard fields. The per-task helpers
(WithTaskInstance, WithTaskLogName) are the equivalent of an MDC: a runner
creates a child logger on entry to a run and drops it on exit, so log
context never leaks between tasks that share an executor slot.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	runnerLog := log.WithTaskInstance(procID, taskID)
	runnerLog.Info().Msg("task begins to execute")
*/
package log
