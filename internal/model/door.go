package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownDoor = errors.New("unknown door")
	ErrUnknownRole = errors.New("unknown role")
)

// DoorState is the authoritative lock state of one door.
type DoorState struct {
	DoorID AreaID `json:"door_id"`
	Locked bool   `json:"locked"`
}

// DoorSnapshot is a full point-in-time map of all door states, used both for
// listener notification and for remote reconciliation.
type DoorSnapshot map[AreaID]bool

type DoorEventType string

const (
	DoorEventLock      DoorEventType = "lock"
	DoorEventUnlock    DoorEventType = "unlock"
	DoorEventLockAll   DoorEventType = "lock_all"
	DoorEventUnlockAll DoorEventType = "unlock_all"
	DoorEventDenied    DoorEventType = "denied"
)

// DoorEvent is one entry of the door audit trail. The trail is bounded and
// append-only; it is never a source of truth.
type DoorEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      DoorEventType `json:"type"`
	DoorID    AreaID        `json:"door_id,omitempty"`
	ActorID   uuid.UUID     `json:"actor_id"`
	Success   bool          `json:"success"`
	Reason    string        `json:"reason,omitempty"`
}
