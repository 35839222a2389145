package intent

import (
	"homeflow/internal/model"
)

// NormalizeCommand turns a raw reply payload into a typed command, resolving
// loose names through the normalizers. Door actions accept the target in
// either the door or room field, models use both.
func NormalizeCommand(p model.ReplyPayload) model.Command {
	cmd := model.Command{
		Action: model.ActionFromString(p.Action),
		Say:    p.Say,
	}
	switch cmd.Action {
	case model.ActionDeviceSet:
		cmd.Room = NormalizeRoom(p.Room)
		cmd.Device = NormalizeDeviceType(p.Device)
		cmd.On = p.Value == "on" || p.Value == "1" || p.Value == "true"
	case model.ActionLock, model.ActionUnlock:
		target := p.Door
		if target == "" {
			target = p.Room
		}
		cmd.Door = NormalizeDoor(target)
	}
	return cmd
}
