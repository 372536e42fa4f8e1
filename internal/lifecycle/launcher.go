package lifecycle

import (
	"context"
	"time"

	"branchpilot/internal/events"
	"branchpilot/internal/hooks"
	"branchpilot/pkg/models"
)

// StopChecker reports whether an out-of-band stop has been requested for
// a workspace.
type StopChecker interface {
	ShouldStop(workspaceID string) bool
}

// stopPollInterval is how often the launcher checks for stop requests
// while a workspace runs.
const stopPollInterval = 500 * time.Millisecond

// Launcher builds and runs one lifecycle per workspace. It satisfies the
// dispatcher's launch contract and turns stop requests into cancellation
// of that workspace only.
type Launcher struct {
	Trees    Materializer
	Runner   hooks.TaskRunner
	Verifier hooks.Verifier
	Bus      *events.Bus
	// Stop is optional; nil disables out-of-band stop checking.
	Stop StopChecker
}

// Launch runs the workspace's lifecycle to completion. A stop request
// cancels this workspace's context only; siblings are unaffected.
func (l *Launcher) Launch(ctx context.Context, ws *models.Workspace) error {
	wsCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if l.Stop != nil {
		go l.watchStop(wsCtx, cancel, ws.ID)
	}

	lc := New(ws, l.Trees, l.Runner, l.Verifier, l.Bus)
	return lc.Run(wsCtx)
}

// watchStop polls for a stop request and cancels the workspace context
// when one arrives. Returns when the workspace finishes.
func (l *Launcher) watchStop(ctx context.Context, cancel context.CancelFunc, workspaceID string) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.Stop.ShouldStop(workspaceID) {
				cancel()
				return
			}
		}
	}
}
