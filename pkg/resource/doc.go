// Package resource stages remote object-store resources (scripts, jars,
// data files) into a task's local execute directory before the task runs.
package resource
