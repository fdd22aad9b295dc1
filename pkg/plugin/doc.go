/*
Package plugin defines the contract between the worker runtime and task
plugins.

A plugin contributes a Channel for its task type (shell, SQL, Spark, ...).
The runtime looks the channel up in a Registry by the context's task type,
creates a Task for the run, and drives it through Init and Handle. Handle is
the dominant blocking call of a task's life; cancellation arrives either
through the context passed to Handle or an out-of-band CancelApplication.

The VarPool inside Parameters is both input and output: the runtime seeds it
from the execution context before Handle and serializes it back afterwards.
*/
package plugin
