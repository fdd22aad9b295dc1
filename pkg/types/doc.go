// Package types holds the shared data model of the Skein worker: the task
// execution context dispatched by masters, execution statuses, lifecycle
// message kinds, and alert types. It has no dependencies on other Skein
// packages so every component can exchange these values freely.
package types
