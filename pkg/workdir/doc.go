// Package workdir owns the per-task local scratch directory lifecycle.
package workdir
