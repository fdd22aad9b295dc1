package workdir

import (
	"os"

	"github.com/skeinflow/skein/pkg/log"
)

// Clear removes a task's execute directory after the run. Cleanup is
// best-effort and never surfaces an error: the task's own status must not
// be masked by a failed delete.
//
// Develop mode leaves everything in place for inspection. An empty path and
// the filesystem root are refused outright.
func Clear(execLocalPath string, developMode bool) {
	logger := log.WithComponent("workdir")

	if developMode {
		logger.Info().Str("path", execLocalPath).Msg("develop mode on, leaving execute path for inspection")
		return
	}

	if execLocalPath == "" {
		logger.Warn().Msg("execute path is empty, nothing to clear")
		return
	}

	if execLocalPath == "/" {
		logger.Warn().Msg("execute path is '/', direct deletion is not allowed")
		return
	}

	if err := os.RemoveAll(execLocalPath); err != nil {
		// RemoveAll already treats a missing path as success, so anything
		// surfacing here is a real I/O problem worth logging.
		logger.Error().Err(err).Str("path", execLocalPath).Msg("failed to clear execute path")
		return
	}
	logger.Info().Str("path", execLocalPath).Msg("execute path cleared")
}
