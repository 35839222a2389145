package daemon

import (
	"context"
	"log/slog"
	"time"

	"homeflow/internal/device"
	"homeflow/internal/doorlock"
)

// ReconcileDoorsTask periodically pulls the hub's door snapshot and folds it
// into the local subsystem. Doors changed out of band (a physical key, a
// wall panel) converge without a command. Reconciled changes are quiet: they
// notify subscribers but do not enter the audit trail.
func ReconcileDoorsTask(logger *slog.Logger, doors *doorlock.Subsystem, hub device.Hub, interval time.Duration) TaskFunc {
	return func(ctx context.Context, name string) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				snapshot, err := hub.GetDoors(ctx)
				if err != nil {
					logger.Warn("Door reconciliation skipped, hub unreachable", "daemon", name, "error", err)
					continue
				}
				for id, locked := range snapshot {
					doors.SetState(id, locked, doorlock.Options{SkipLog: true})
				}
			}
		}
	}
}
