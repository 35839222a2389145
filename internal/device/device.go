// Package device owns the static device layout, the local on/off cache and
// the contract to the remote device-state hub.
package device

import (
	"sync"

	"homeflow/internal/model"
)

// Registry holds the static device configuration and the optimistic local
// state cache. Devices are configuration, never user-mutable.
type Registry struct {
	descriptors []model.DeviceDescriptor

	mu     sync.RWMutex
	states map[string]bool
}

func NewRegistry(descriptors []model.DeviceDescriptor) *Registry {
	r := &Registry{
		descriptors: append([]model.DeviceDescriptor(nil), descriptors...),
		states:      make(map[string]bool, len(descriptors)),
	}
	for _, d := range descriptors {
		r.states[d.ID] = false
	}
	return r
}

// Resolve returns the device ids of one type in one area. An area may have
// none of a type; that is an empty slice, not an error.
func (r *Registry) Resolve(area model.AreaID, deviceType model.DeviceType) []string {
	var ids []string
	for _, d := range r.descriptors {
		if d.AreaID == area && d.Type == deviceType {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Descriptors returns the full configured layout.
func (r *Registry) Descriptors() []model.DeviceDescriptor {
	return append([]model.DeviceDescriptor(nil), r.descriptors...)
}

// State reads the locally cached on/off value of one device.
func (r *Registry) State(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[id]
}

// SetState writes the local cache. This is the optimistic-update target; the
// orchestrator rolls it back when the hub rejects a change.
func (r *Registry) SetState(id string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = on
}

// States returns a copy of the local cache for a set of device ids.
func (r *Registry) States(ids []string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = r.states[id]
	}
	return out
}
