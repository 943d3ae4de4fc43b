package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"vpnguard/internal/settings"
	"vpnguard/internal/tunnelmachine"
)

// factoryResetTask carries the accumulated error and the caller's reply
// channel from dispatchFactoryReset through to finishShutdown, which
// runs the pipeline's final step once shutdown has actually completed.
type factoryResetTask struct {
	cmd      Command
	firstErr error
}

// dispatchFactoryReset implements the Factory Reset Pipeline's first
// four steps (C11, spec.md §4.11): each logs on failure but continues,
// preserving the first error for the eventual reply (invariant 11).
// Step 5 (directory clearing + reply) is queued as a shutdown task and
// runs from finishShutdown once shutdown has actually completed.
func (o *Orchestrator) dispatchFactoryReset(ctx context.Context, cmd Command) {
	task := &factoryResetTask{cmd: cmd}
	record := func(err error, step string) {
		if err == nil {
			return
		}
		o.log.Warnf("FactoryReset", "%s failed: %v", step, err)
		if task.firstErr == nil {
			task.firstErr = err
		}
	}

	record(o.account.Logout(ctx), "logout device")

	record(o.history.Clear(), "clear account history")

	if _, err := o.settings.Update(func(s *settings.Settings) { *s = settings.Default() }); err != nil {
		record(err, "reset settings")
	}

	o.pendingFactoryReset = task
	_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Disconnect})
	o.execState.TriggerShutdown(o.cached.Phase == tunnelmachine.Disconnected)
}

// finishFactoryReset runs step 5 once shutdown has completed: clear the
// cache directory, then the log directory, then reply to the original
// caller. Called by finishShutdown; a no-op if no reset is pending.
func (o *Orchestrator) finishFactoryReset() {
	task := o.pendingFactoryReset
	if task == nil {
		return
	}
	o.pendingFactoryReset = nil

	record := func(err error, step string) {
		if err == nil {
			return
		}
		o.log.Warnf("FactoryReset", "%s failed: %v", step, err)
		if task.firstErr == nil {
			task.firstErr = err
		}
	}

	record(clearDir(o.cacheDir), "clear cache directory")
	record(clearDir(o.logDir), "clear log directory")

	o.reply(task.cmd, Reply{Err: task.firstErr})
}

// clearDir empties dir's contents without removing dir itself, so
// collaborators holding the directory open (loggers, in particular)
// keep working. A missing directory is not an error.
func clearDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
