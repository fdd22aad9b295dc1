// Package hadoop integrates with the YARN resource manager for the
// out-of-band application kill issued when a task is cancelled or fails.
package hadoop
