// Package doorlock is the authoritative, observable state machine for every
// door in the house. Each door is a two-state machine (locked/unlocked);
// transitions are permission-checked, persisted, logged to a bounded audit
// trail and broadcast to subscribers as full snapshots.
package doorlock

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/anggasct/fluo"
	"github.com/google/uuid"

	"homeflow/internal/model"
	"homeflow/internal/storage"
)

const (
	stateLocked   = "locked"
	stateUnlocked = "unlocked"

	eventLock   = "lock"
	eventUnlock = "unlock"

	storageKeyPrefix = "door:"
)

// Authorizer is the policy surface the subsystem consults before mutating
// state. Decisions are made against the acting member passed with each call;
// a nil member denies.
type Authorizer interface {
	Can(m *model.Member, control model.Control) bool
	CanDoorAction(m *model.Member, area model.AreaID, unlocking bool) bool
}

// Result is the structured outcome of a door operation. A denial is a normal
// outcome, not an error.
type Result struct {
	Success bool
	Locked  bool
	Error   string
}

// Listener receives a full door snapshot on every change.
type Listener func(model.DoorSnapshot)

// Options tunes the low-level SetState primitive. Remote reconciliation uses
// it to apply confirmed states without re-triggering permission checks or
// duplicate events.
type Options struct {
	Actor       uuid.UUID
	Force       bool
	SkipLog     bool
	SkipPersist bool
	SkipNotify  bool
}

// door pairs a state machine instance with the mutex that serializes
// operations on it. Overlapping toggles on the same door (UI tap plus voice
// command) queue up instead of racing.
type door struct {
	mu      sync.Mutex
	machine fluo.Machine
}

func (d *door) locked() bool {
	return d.machine.CurrentState() == stateLocked
}

func (d *door) apply(locked bool) bool {
	event := eventUnlock
	if locked {
		event = eventLock
	}
	return d.machine.HandleEvent(event, nil).Success()
}

type Subsystem struct {
	logger *slog.Logger
	auth   Authorizer
	store  storage.Store

	mu        sync.RWMutex
	doors     map[model.AreaID]*door
	order     []model.AreaID
	listeners map[int]Listener
	nextSub   int
	events    *eventLog
}

// definition is the shared two-state machine every door instantiates.
var definition = fluo.NewMachine().
	State(stateLocked).Initial().
	To(stateUnlocked).On(eventUnlock).
	State(stateUnlocked).
	To(stateLocked).On(eventLock).
	Build()

// New builds the subsystem for the configured doors, restoring persisted
// states. Every door starts locked unless storage says otherwise. Storage
// errors degrade to the in-memory default, they never fail construction.
func New(logger *slog.Logger, auth Authorizer, store storage.Store, doorIDs []model.AreaID) *Subsystem {
	s := &Subsystem{
		logger:    logger.With("component", "doorlock"),
		auth:      auth,
		store:     store,
		doors:     make(map[model.AreaID]*door, len(doorIDs)),
		order:     append([]model.AreaID(nil), doorIDs...),
		listeners: make(map[int]Listener),
		events:    newEventLog(eventLogCap),
	}
	for _, id := range doorIDs {
		d := &door{machine: definition.CreateInstance()}
		if err := d.machine.Start(); err != nil {
			s.logger.Error("Failed to start door state machine", "door", id, "error", err)
		}
		if state, ok := s.loadState(id); ok && !state {
			d.apply(false)
		}
		s.doors[id] = d
	}
	return s
}

func (s *Subsystem) loadState(id model.AreaID) (locked bool, ok bool) {
	value, err := s.store.Get(storageKeyPrefix + string(id))
	if err != nil {
		s.logger.Warn("Failed to load door state, defaulting to locked", "door", id, "error", err)
		return false, false
	}
	if value == nil {
		return false, false
	}
	var state model.DoorState
	if err := json.Unmarshal(value, &state); err != nil {
		s.logger.Warn("Corrupt door state in storage, defaulting to locked", "door", id, "error", err)
		return false, false
	}
	return state.Locked, true
}

func (s *Subsystem) persist(id model.AreaID, locked bool) {
	value, err := json.Marshal(model.DoorState{DoorID: id, Locked: locked})
	if err != nil {
		return
	}
	if err := s.store.Put(storageKeyPrefix+string(id), value); err != nil {
		// Degrade to memory-only; the in-process state stays authoritative.
		s.logger.Warn("Failed to persist door state", "door", id, "error", err)
	}
}

// Toggle flips one door to the opposite of its current state on behalf of
// the acting member. The desired state decides the permission check: toggling
// a locked door is an unlock.
func (s *Subsystem) Toggle(actor *model.Member, doorID model.AreaID) Result {
	s.mu.RLock()
	d, ok := s.doors[doorID]
	s.mu.RUnlock()
	if !ok {
		return Result{Success: false, Error: "Unknown door"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	desiredLocked := !d.locked()
	unlocking := !desiredLocked
	if !s.auth.CanDoorAction(actor, doorID, unlocking) {
		s.appendEvent(model.DoorEvent{
			Type: model.DoorEventDenied, DoorID: doorID, ActorID: actorID(actor),
			Success: false, Reason: deniedReason(unlocking),
		})
		return Result{Success: false, Error: deniedReason(unlocking)}
	}

	d.apply(desiredLocked)
	s.persist(doorID, desiredLocked)

	eventType := model.DoorEventLock
	if !desiredLocked {
		eventType = model.DoorEventUnlock
	}
	s.appendEvent(model.DoorEvent{
		Type: eventType, DoorID: doorID, ActorID: actorID(actor), Success: true,
	})
	s.notify()
	return Result{Success: true, Locked: desiredLocked}
}

// Deny records an authorization denial for a door action without touching
// state. The orchestrator uses it when it has to authorize before talking to
// the remote hub.
func (s *Subsystem) Deny(actor *model.Member, doorID model.AreaID, unlocking bool) Result {
	s.appendEvent(model.DoorEvent{
		Type: model.DoorEventDenied, DoorID: doorID, ActorID: actorID(actor),
		Success: false, Reason: deniedReason(unlocking),
	})
	return Result{Success: false, Error: deniedReason(unlocking)}
}

// LockAll locks every door. Authorization is the coarse doors control only:
// whole-house locking is an explicit escalation path that skips per-area
// checks. One aggregate event and one snapshot notification per call.
func (s *Subsystem) LockAll(actor *model.Member) Result {
	return s.setAll(actor, true)
}

// UnlockAll unlocks every door; requires the unlock_doors control on top of
// the doors control.
func (s *Subsystem) UnlockAll(actor *model.Member) Result {
	return s.setAll(actor, false)
}

func (s *Subsystem) setAll(actor *model.Member, locked bool) Result {
	eventType := model.DoorEventLockAll
	if !locked {
		eventType = model.DoorEventUnlockAll
	}

	allowed := s.auth.Can(actor, model.ControlDoors)
	if allowed && !locked {
		allowed = s.auth.Can(actor, model.ControlUnlockDoors)
	}
	if !allowed {
		s.appendEvent(model.DoorEvent{
			Type: eventType, ActorID: actorID(actor), Success: false,
			Reason: deniedReason(!locked),
		})
		return Result{Success: false, Error: deniedReason(!locked)}
	}

	s.mu.RLock()
	order := s.order
	s.mu.RUnlock()

	for _, id := range order {
		d := s.doors[id]
		d.mu.Lock()
		if d.locked() != locked {
			d.apply(locked)
			s.persist(id, locked)
		}
		d.mu.Unlock()
	}

	s.appendEvent(model.DoorEvent{Type: eventType, ActorID: actorID(actor), Success: true})
	s.notify()
	return Result{Success: true, Locked: locked}
}

// SetState is the low-level primitive used internally and by remote-sync
// paths. It bypasses authorization: once the remote hub has confirmed a
// state, it is the authority. No-op when the value is unchanged, unless
// forced.
func (s *Subsystem) SetState(doorID model.AreaID, locked bool, opts Options) Result {
	s.mu.RLock()
	d, ok := s.doors[doorID]
	s.mu.RUnlock()
	if !ok {
		return Result{Success: false, Error: "Unknown door"}
	}

	d.mu.Lock()
	changed := d.locked() != locked
	if changed {
		d.apply(locked)
	}
	d.mu.Unlock()

	if !changed && !opts.Force {
		return Result{Success: true, Locked: locked}
	}

	if !opts.SkipPersist {
		s.persist(doorID, locked)
	}
	if !opts.SkipLog {
		eventType := model.DoorEventLock
		if !locked {
			eventType = model.DoorEventUnlock
		}
		s.appendEvent(model.DoorEvent{Type: eventType, DoorID: doorID, ActorID: opts.Actor, Success: true})
	}
	if !opts.SkipNotify {
		s.notify()
	}
	return Result{Success: true, Locked: locked}
}

// Locked reports one door's state; ok is false for unknown doors.
func (s *Subsystem) Locked(doorID model.AreaID) (locked bool, ok bool) {
	s.mu.RLock()
	d, present := s.doors[doorID]
	s.mu.RUnlock()
	if !present {
		return false, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked(), true
}

// Snapshot returns the full current door map.
func (s *Subsystem) Snapshot() model.DoorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(model.DoorSnapshot, len(s.doors))
	for id, d := range s.doors {
		snapshot[id] = d.locked()
	}
	return snapshot
}

// Subscribe registers a listener and immediately replays the current
// snapshot, so subscribers never start blind. The returned function
// unsubscribes.
func (s *Subsystem) Subscribe(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = listener
	s.mu.Unlock()

	listener(s.Snapshot())

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Subsystem) notify() {
	snapshot := s.Snapshot()
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()
	for _, l := range listeners {
		l(snapshot)
	}
}

func (s *Subsystem) appendEvent(event model.DoorEvent) {
	event.Timestamp = time.Now()
	s.mu.Lock()
	s.events.append(event)
	s.mu.Unlock()
}

// Events returns a copy of the audit trail, oldest first.
func (s *Subsystem) Events() []model.DoorEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.all()
}

func actorID(m *model.Member) uuid.UUID {
	if m == nil {
		return uuid.Nil
	}
	return m.ID
}

func deniedReason(unlocking bool) string {
	if unlocking {
		return "You are not allowed to unlock this door"
	}
	return "You are not allowed to lock this door"
}
