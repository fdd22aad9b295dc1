/*
Package runner is the per-task execution core of the Skein worker.

A TaskRunner owns one task execution context and walks it through its
lifecycle: dry-run short circuit, resource staging, plugin execution,
result reporting, and work directory cleanup. The terminal RESULT message
is dispatched exactly once per run, whatever happens in between.

Runners wait in a DelayQueue until their delayed-start deadline passes and
are then executed by one of the Pool's fixed slots. The Cache tracks the
in-flight runners so master-initiated kills can find them.
*/
package runner
