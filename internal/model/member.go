package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func RoleFromString(s string) (Role, error) {
	switch s {
	case string(RoleOwner):
		return RoleOwner, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleMember):
		return RoleMember, nil
	default:
		return "", ErrUnknownRole
	}
}

// Control is a member's global capability switch. Area permissions only apply
// when the matching control is enabled.
type Control string

const (
	ControlDevices     Control = "devices"
	ControlDoors       Control = "doors"
	ControlUnlockDoors Control = "unlock_doors"
	ControlVoice       Control = "voice"
	ControlPower       Control = "power"
)

type Controls struct {
	Devices     bool `json:"devices"`
	Doors       bool `json:"doors"`
	UnlockDoors bool `json:"unlock_doors"`
	Voice       bool `json:"voice"`
	Power       bool `json:"power"`
}

// Get reports the value of one control flag.
func (c Controls) Get(control Control) bool {
	switch control {
	case ControlDevices:
		return c.Devices
	case ControlDoors:
		return c.Doors
	case ControlUnlockDoors:
		return c.UnlockDoors
	case ControlVoice:
		return c.Voice
	case ControlPower:
		return c.Power
	default:
		return false
	}
}

// AreaPermissions are a member's per-area device and door permissions.
type AreaPermissions struct {
	Light bool `json:"light"`
	Fan   bool `json:"fan"`
	AC    bool `json:"ac"`
	Door  bool `json:"door"`
}

// Device reports whether the given device type is permitted in this area.
func (p AreaPermissions) Device(t DeviceType) bool {
	switch t {
	case DeviceTypeFan:
		return p.Fan
	case DeviceTypeAC:
		return p.AC
	default:
		return p.Light
	}
}

// Policy is the full set of global and per-area permissions owned by a member.
// Every configured area has an entry; missing areas are backfilled from role
// defaults before the policy is used.
type Policy struct {
	Controls Controls                   `json:"controls"`
	Areas    map[AreaID]AreaPermissions `json:"areas"`
}

// Clone deep-copies the policy, including the areas map.
func (p Policy) Clone() Policy {
	out := p
	out.Areas = make(map[AreaID]AreaPermissions, len(p.Areas))
	for id, perms := range p.Areas {
		out.Areas[id] = perms
	}
	return out
}

type Member struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Policy       Policy    `json:"policy"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns an independent copy of the member. Callers that hold a clone
// never observe later registry updates.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	out := *m
	out.Policy = m.Policy.Clone()
	return &out
}
