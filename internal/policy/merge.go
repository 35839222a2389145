package policy

import "homeflow/internal/model"

// ControlsPatch is a partial update of a member's global controls. Nil fields
// are left untouched.
type ControlsPatch struct {
	Devices     *bool `json:"devices,omitempty"`
	Doors       *bool `json:"doors,omitempty"`
	UnlockDoors *bool `json:"unlock_doors,omitempty"`
	Voice       *bool `json:"voice,omitempty"`
	Power       *bool `json:"power,omitempty"`
}

// AreaPatch is a partial update of one area's permissions.
type AreaPatch struct {
	Light *bool `json:"light,omitempty"`
	Fan   *bool `json:"fan,omitempty"`
	AC    *bool `json:"ac,omitempty"`
	Door  *bool `json:"door,omitempty"`
}

// Patch is a partial policy update. Areas not mentioned keep their existing
// permissions in full.
type Patch struct {
	Controls ControlsPatch           `json:"controls"`
	Areas    map[model.AreaID]AreaPatch `json:"areas,omitempty"`
}

// Merge applies a patch to a policy. Controls are shallow-merged and areas
// are merged per-area; a patch never removes a permission it does not
// mention. Applying the same patch twice is idempotent, and an empty patch
// changes nothing.
func Merge(p model.Policy, patch Patch) model.Policy {
	merged := model.Policy{
		Controls: p.Controls,
		Areas:    make(map[model.AreaID]model.AreaPermissions, len(p.Areas)),
	}
	for area, perms := range p.Areas {
		merged.Areas[area] = perms
	}

	applyBool(&merged.Controls.Devices, patch.Controls.Devices)
	applyBool(&merged.Controls.Doors, patch.Controls.Doors)
	applyBool(&merged.Controls.UnlockDoors, patch.Controls.UnlockDoors)
	applyBool(&merged.Controls.Voice, patch.Controls.Voice)
	applyBool(&merged.Controls.Power, patch.Controls.Power)

	for area, areaPatch := range patch.Areas {
		perms := merged.Areas[area]
		applyBool(&perms.Light, areaPatch.Light)
		applyBool(&perms.Fan, areaPatch.Fan)
		applyBool(&perms.AC, areaPatch.AC)
		applyBool(&perms.Door, areaPatch.Door)
		merged.Areas[area] = perms
	}
	return merged
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
