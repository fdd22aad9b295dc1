package hadoop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/skeinflow/skein/pkg/log"
)

// AppKiller terminates externally tracked applications (YARN jobs) a task
// spawned. Kill paths are best-effort: implementations log and swallow.
type AppKiller interface {
	// KillApplications kills every application in the comma-separated id
	// list. Never returns an error for individual failures.
	KillApplications(ctx context.Context, appIDs string)
}

// YarnClient kills applications through the yarn CLI on the worker host.
type YarnClient struct {
	// Binary is the yarn executable, default "yarn".
	Binary string
	// Timeout bounds a single kill invocation.
	Timeout time.Duration
}

// NewYarnClient returns a client with the standard binary and timeout.
func NewYarnClient() *YarnClient {
	return &YarnClient{Binary: "yarn", Timeout: 30 * time.Second}
}

// KillApplications implements AppKiller.
func (c *YarnClient) KillApplications(ctx context.Context, appIDs string) {
	logger := log.WithComponent("yarn")
	for _, appID := range strings.Split(appIDs, ",") {
		appID = strings.TrimSpace(appID)
		if appID == "" {
			continue
		}
		if err := c.kill(ctx, appID); err != nil {
			logger.Error().Err(err).Str("app_id", appID).Msg("failed to kill yarn application")
			continue
		}
		logger.Info().Str("app_id", appID).Msg("yarn application killed")
	}
}

func (c *YarnClient) kill(ctx context.Context, appID string) error {
	killCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(killCtx, c.Binary, "application", "-kill", appID)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yarn application -kill %s: %w (%s)", appID, err, strings.TrimSpace(string(out)))
	}
	return nil
}
