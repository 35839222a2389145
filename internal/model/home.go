package model

import "fmt"

// AreaID identifies a room or zone of the house. The set of areas is closed:
// it can be extended by configuration, never by free text.
type AreaID string

const (
	AreaMainHall AreaID = "mainhall"
	AreaBedroom1 AreaID = "bedroom1"
	AreaBedroom2 AreaID = "bedroom2"
	AreaKitchen  AreaID = "kitchen"
)

// Areas returns every configured area, in a stable order.
func Areas() []AreaID {
	return []AreaID{AreaMainHall, AreaBedroom1, AreaBedroom2, AreaKitchen}
}

func AreaFromString(s string) (AreaID, error) {
	switch s {
	case string(AreaMainHall):
		return AreaMainHall, nil
	case string(AreaBedroom1):
		return AreaBedroom1, nil
	case string(AreaBedroom2):
		return AreaBedroom2, nil
	case string(AreaKitchen):
		return AreaKitchen, nil
	default:
		return "", fmt.Errorf("unknown area: %s", s)
	}
}

// DisplayName returns the human-readable name used in spoken responses.
func (a AreaID) DisplayName() string {
	switch a {
	case AreaMainHall:
		return "main hall"
	case AreaBedroom1:
		return "bedroom 1"
	case AreaBedroom2:
		return "bedroom 2"
	case AreaKitchen:
		return "kitchen"
	default:
		return string(a)
	}
}

type DeviceType string

const (
	DeviceTypeLight DeviceType = "light"
	DeviceTypeFan   DeviceType = "fan"
	DeviceTypeAC    DeviceType = "ac"
)

func (t DeviceType) DisplayName() string {
	if t == DeviceTypeAC {
		return "AC"
	}
	return string(t)
}

// DeviceDescriptor is static device configuration, not user-mutable.
type DeviceDescriptor struct {
	ID     string     `json:"id"`
	AreaID AreaID     `json:"area_id"`
	Type   DeviceType `json:"type"`
}

// DeviceState is the on/off state of one device, owned by the local cache
// and/or the remote hub. No persistence guarantee.
type DeviceState struct {
	DeviceID string `json:"device_id"`
	On       bool   `json:"on"`
}

// DefaultDevices is the simulated house layout. The kitchen deliberately has
// no fan or AC.
func DefaultDevices() []DeviceDescriptor {
	return []DeviceDescriptor{
		{ID: "mainhall-light", AreaID: AreaMainHall, Type: DeviceTypeLight},
		{ID: "mainhall-fan", AreaID: AreaMainHall, Type: DeviceTypeFan},
		{ID: "mainhall-ac", AreaID: AreaMainHall, Type: DeviceTypeAC},
		{ID: "bedroom1-light", AreaID: AreaBedroom1, Type: DeviceTypeLight},
		{ID: "bedroom1-fan", AreaID: AreaBedroom1, Type: DeviceTypeFan},
		{ID: "bedroom1-ac", AreaID: AreaBedroom1, Type: DeviceTypeAC},
		{ID: "bedroom2-light", AreaID: AreaBedroom2, Type: DeviceTypeLight},
		{ID: "bedroom2-fan", AreaID: AreaBedroom2, Type: DeviceTypeFan},
		{ID: "bedroom2-ac", AreaID: AreaBedroom2, Type: DeviceTypeAC},
		{ID: "kitchen-light", AreaID: AreaKitchen, Type: DeviceTypeLight},
	}
}

// Doors returns every area with a lockable door. Every configured area has one.
func Doors() []AreaID {
	return Areas()
}
