package policy

import "homeflow/internal/model"

// DefaultPolicy produces a fully-populated policy for a role: every control
// and every configured area has a value. It seeds new members and backfills
// policies missing fields after a partial update.
func DefaultPolicy(role model.Role) model.Policy {
	full := role == model.RoleOwner || role == model.RoleAdmin

	p := model.Policy{
		Controls: model.Controls{
			Devices:     true,
			Doors:       true,
			UnlockDoors: full,
			Voice:       true,
			Power:       full,
		},
		Areas: make(map[model.AreaID]model.AreaPermissions, len(model.Areas())),
	}
	for _, area := range model.Areas() {
		p.Areas[area] = model.AreaPermissions{Light: true, Fan: true, AC: true, Door: true}
	}
	return p
}

// Normalize backfills any area missing from a policy with the role default,
// so lookups never hit an absent entry.
func Normalize(p model.Policy, role model.Role) model.Policy {
	defaults := DefaultPolicy(role)
	if p.Areas == nil {
		p.Areas = make(map[model.AreaID]model.AreaPermissions, len(defaults.Areas))
	}
	for area, perms := range defaults.Areas {
		if _, ok := p.Areas[area]; !ok {
			p.Areas[area] = perms
		}
	}
	return p
}
