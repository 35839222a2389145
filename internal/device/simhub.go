package device

import (
	"context"
	"sync"

	"homeflow/internal/model"
)

// SimHub is an in-memory hub used for local development and tests. It mimics
// the remote collaborator faithfully, including injectable failures.
type SimHub struct {
	mu      sync.Mutex
	doors   map[model.AreaID]bool
	devices map[string]int

	// FailDevices and FailDoors make the matching calls return ErrHubDown.
	FailDevices map[string]bool
	FailDoors   map[model.AreaID]bool
}

func NewSimHub(doors []model.AreaID, descriptors []model.DeviceDescriptor) *SimHub {
	h := &SimHub{
		doors:       make(map[model.AreaID]bool, len(doors)),
		devices:     make(map[string]int, len(descriptors)),
		FailDevices: make(map[string]bool),
		FailDoors:   make(map[model.AreaID]bool),
	}
	for _, id := range doors {
		h.doors[id] = true
	}
	for _, d := range descriptors {
		h.devices[d.ID] = 0
	}
	return h
}

func (h *SimHub) GetDoors(ctx context.Context) (model.DoorSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snapshot := make(model.DoorSnapshot, len(h.doors))
	for id, locked := range h.doors {
		if h.FailDoors[id] {
			return nil, ErrHubDown
		}
		snapshot[id] = locked
	}
	return snapshot, nil
}

func (h *SimHub) ToggleDoor(ctx context.Context, id model.AreaID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailDoors[id] {
		return false, ErrHubDown
	}
	locked, ok := h.doors[id]
	if !ok {
		return false, ErrHubDown
	}
	h.doors[id] = !locked
	return !locked, nil
}

func (h *SimHub) LockAllDoors(ctx context.Context) error {
	return h.setAllDoors(true)
}

func (h *SimHub) UnlockAllDoors(ctx context.Context) error {
	return h.setAllDoors(false)
}

func (h *SimHub) setAllDoors(locked bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.doors {
		if h.FailDoors[id] {
			return ErrHubDown
		}
		h.doors[id] = locked
	}
	return nil
}

func (h *SimHub) SetDeviceState(ctx context.Context, id string, value int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailDevices[id] {
		return ErrHubDown
	}
	h.devices[id] = value
	return nil
}

func (h *SimHub) GetDeviceStates(ctx context.Context, ids []string) (map[string]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		if h.FailDevices[id] {
			return nil, ErrHubDown
		}
		out[id] = h.devices[id]
	}
	return out, nil
}

// SetDoor forces a hub-side door state, simulating an external change.
func (h *SimHub) SetDoor(id model.AreaID, locked bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doors[id] = locked
}

// Device reads a hub-side device value.
func (h *SimHub) Device(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.devices[id]
}
