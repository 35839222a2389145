// Package policy answers authorization questions for normalized commands.
// The engine is a set of pure predicates over the member it is handed; it
// performs no I/O and owns no state of its own.
package policy

import (
	"homeflow/internal/model"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Can reports whether the member holds a global control. This is the coarse
// check used for whole-house door actions and voice access. A nil member
// denies everything.
func (e *Engine) Can(m *model.Member, control model.Control) bool {
	if m == nil {
		return false
	}
	return m.Policy.Controls.Get(control)
}

// CanDevice reports whether the member may switch the given device type in
// the given area. The global devices control always gates the per-area
// permission.
func (e *Engine) CanDevice(m *model.Member, area model.AreaID, deviceType model.DeviceType) bool {
	if m == nil || !m.Policy.Controls.Devices {
		return false
	}
	return m.Policy.Areas[area].Device(deviceType)
}

// CanDoorAction reports whether the member may lock (or, when unlocking is
// true, unlock) the door of the given area. Locking and unlocking are
// asymmetric: unlocking additionally requires the unlock_doors control.
func (e *Engine) CanDoorAction(m *model.Member, area model.AreaID, unlocking bool) bool {
	if m == nil || !m.Policy.Controls.Doors {
		return false
	}
	if unlocking && !m.Policy.Controls.UnlockDoors {
		return false
	}
	return m.Policy.Areas[area].Door
}
