// Package intent canonicalizes loosely-specified room, door and device names
// into the closed area and device-type enumerations.
package intent

import (
	"strings"

	"homeflow/internal/model"
)

var allKeywords = []string{"all", "everywhere", "whole", "entire"}

// roomKeywords is ordered: the first matching group wins. "bedroom" with no
// number must resolve to bedroom 1, so bedroom 2 keywords are checked first.
var roomKeywords = []struct {
	area     model.AreaID
	keywords []string
}{
	{model.AreaKitchen, []string{"kitchen"}},
	{model.AreaBedroom2, []string{"bedroom 2", "bedroom2", "room 2", "second bedroom"}},
	{model.AreaBedroom1, []string{"bedroom 1", "bedroom1", "room 1", "first bedroom", "bedroom"}},
	{model.AreaMainHall, []string{"main", "hall", "living"}},
}

// NormalizeRoom maps a free-text room name to an area, or model.RoomAll for
// whole-house phrasing. Unrecognized input defaults to the main hall.
func NormalizeRoom(room string) string {
	s := strings.ToLower(strings.TrimSpace(room))
	for _, kw := range allKeywords {
		// Whole-word match: "hall" must not trigger "all".
		if containsWord(s, kw) {
			return model.RoomAll
		}
	}
	return string(matchArea(s))
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

// NormalizeDoor maps a free-text door name to an area. There is no "all"
// target: whole-door-set commands are a distinct action, not a room.
func NormalizeDoor(door string) model.AreaID {
	return matchArea(strings.ToLower(strings.TrimSpace(door)))
}

func matchArea(s string) model.AreaID {
	for _, group := range roomKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(s, kw) {
				return group.area
			}
		}
	}
	return model.AreaMainHall
}

// NormalizeDeviceType maps a free-text device name to a device type. Anything
// that is not a fan or an AC is a light.
func NormalizeDeviceType(device string) model.DeviceType {
	switch strings.ToLower(strings.TrimSpace(device)) {
	case "fan":
		return model.DeviceTypeFan
	case "ac", "airconditioner", "air-conditioner", "air conditioner":
		return model.DeviceTypeAC
	default:
		return model.DeviceTypeLight
	}
}
