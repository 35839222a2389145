package device

import (
	"context"

	"homeflow/internal/model"
)

// Hub is the remote device-state collaborator. Any call may fail; callers
// treat a failure as a per-target error, never a crash. A nil Hub means the
// house runs on local state alone.
type Hub interface {
	// GetDoors returns the hub's current door snapshot.
	GetDoors(ctx context.Context) (model.DoorSnapshot, error)

	// ToggleDoor flips one door and returns the resulting locked state as
	// reported by the hub.
	ToggleDoor(ctx context.Context, id model.AreaID) (locked bool, err error)

	LockAllDoors(ctx context.Context) error
	UnlockAllDoors(ctx context.Context) error

	// SetDeviceState writes one device's on/off value (1 on, 0 off).
	SetDeviceState(ctx context.Context, id string, value int) error

	// GetDeviceStates reads the hub-side values for a set of devices.
	GetDeviceStates(ctx context.Context, ids []string) (map[string]int, error)
}
