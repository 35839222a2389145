package model

// Action is the normalized command verb extracted from an assistant reply.
type Action string

const (
	ActionNone      Action = "none"
	ActionDeviceSet Action = "device.set"
	ActionLock      Action = "door.lock"
	ActionUnlock    Action = "door.unlock"
	ActionLockAll   Action = "door.lock_all"
	ActionUnlockAll Action = "door.unlock_all"
)

func ActionFromString(s string) Action {
	switch s {
	case string(ActionDeviceSet):
		return ActionDeviceSet
	case string(ActionLock):
		return ActionLock
	case string(ActionUnlock):
		return ActionUnlock
	case string(ActionLockAll):
		return ActionLockAll
	case string(ActionUnlockAll):
		return ActionUnlockAll
	default:
		return ActionNone
	}
}

// RoomAll is the synthetic room target meaning "every configured area". It is
// only ever produced by the intent normalizer, never stored as an AreaID.
const RoomAll = "all"

// ReplyPayload is the raw decoded key/value directive extracted from assistant
// text, before normalization. All values are lower-cased except Say.
type ReplyPayload struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
	Device string `json:"device,omitempty"`
	Value  string `json:"value,omitempty"`
	Door   string `json:"door,omitempty"`
	Say    string `json:"say,omitempty"`
}

// Command is the typed, canonicalized successor of a ReplyPayload.
type Command struct {
	Action Action
	// Room is an AreaID or RoomAll; only meaningful for device actions.
	Room   string
	Device DeviceType
	// On is the desired device value for device.set.
	On   bool
	Door AreaID
	// Say is the assistant-supplied utterance, preferred over a synthesized
	// sentence when present.
	Say string
}
