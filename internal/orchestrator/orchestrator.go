// Package orchestrator executes normalized commands end to end: authorize,
// fan out to devices and doors, reconcile with the remote hub, and fold the
// per-target outcomes into one human-readable message.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"homeflow/internal/device"
	"homeflow/internal/doorlock"
	"homeflow/internal/model"
	"homeflow/internal/policy"
)

// Recorder receives execution metrics and supplies the tracer that spans
// each command. A nil recorder disables both.
type Recorder interface {
	RecordCommand(ctx context.Context, action model.Action, outcome string, elapsed time.Duration)
	Tracer() oteltrace.Tracer
}

const (
	outcomeOK          = "ok"
	outcomeDenied      = "denied"
	outcomePartial     = "partial"
	outcomeUnconfirmed = "unconfirmed"
	outcomeError       = "error"
	outcomeNone        = "none"
)

type Orchestrator struct {
	logger   *slog.Logger
	policy   *policy.Engine
	devices  *device.Registry
	doors    *doorlock.Subsystem
	hub      device.Hub // nil: local state is final
	recorder Recorder
}

func New(logger *slog.Logger, engine *policy.Engine, devices *device.Registry, doors *doorlock.Subsystem, hub device.Hub, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		logger:   logger.With("component", "orchestrator"),
		policy:   engine,
		devices:  devices,
		doors:    doors,
		hub:      hub,
		recorder: recorder,
	}
}

// Execute runs one command to a terminal outcome on behalf of the acting
// member. There is no retry loop: a failed attempt is terminal for this
// invocation, retries belong to the caller.
func (o *Orchestrator) Execute(ctx context.Context, actor *model.Member, cmd model.Command) string {
	started := time.Now()
	var span oteltrace.Span
	if o.recorder != nil {
		ctx, span = o.recorder.Tracer().Start(ctx, "command.execute",
			oteltrace.WithAttributes(attribute.String("command.action", string(cmd.Action))))
	}
	message, outcome := o.execute(ctx, actor, cmd)
	if o.recorder != nil {
		o.recorder.RecordCommand(ctx, cmd.Action, outcome, time.Since(started))
		span.SetAttributes(attribute.String("command.outcome", outcome))
		span.End()
	}
	o.logger.Info("Command executed", "action", cmd.Action, "outcome", outcome)
	return message
}

func (o *Orchestrator) execute(ctx context.Context, actor *model.Member, cmd model.Command) (string, string) {
	switch cmd.Action {
	case model.ActionDeviceSet:
		return o.deviceSet(ctx, actor, cmd)
	case model.ActionLock:
		return o.doorSet(ctx, actor, cmd.Door, true)
	case model.ActionUnlock:
		return o.doorSet(ctx, actor, cmd.Door, false)
	case model.ActionLockAll:
		return o.doorAll(ctx, actor, true)
	case model.ActionUnlockAll:
		return o.doorAll(ctx, actor, false)
	default:
		if cmd.Say != "" {
			return cmd.Say, outcomeNone
		}
		return "Okay.", outcomeNone
	}
}

func actorID(m *model.Member) uuid.UUID {
	if m == nil {
		return uuid.Nil
	}
	return m.ID
}

// attempt is one area's optimistic update: the devices written, their prior
// values and the desired value. Rolling back is a pure function of it.
type attempt struct {
	area     model.AreaID
	ids      []string
	previous map[string]bool
	desired  bool
}

func (a attempt) rollback(reg *device.Registry) {
	for id, prev := range a.previous {
		reg.SetState(id, prev)
	}
}

func (o *Orchestrator) deviceSet(ctx context.Context, actor *model.Member, cmd model.Command) (string, string) {
	areas := o.targetAreas(cmd.Room)

	var denied []model.AreaID
	var attempts []attempt
	for _, area := range areas {
		if !o.policy.CanDevice(actor, area, cmd.Device) {
			denied = append(denied, area)
			continue
		}
		ids := o.devices.Resolve(area, cmd.Device)
		if len(ids) == 0 {
			// Not every area has every device type; nothing to do here.
			continue
		}
		a := attempt{area: area, ids: ids, previous: o.devices.States(ids), desired: cmd.On}
		for _, id := range ids {
			o.devices.SetState(id, cmd.On)
		}
		attempts = append(attempts, a)
	}

	var failed []model.AreaID
	var succeeded []model.AreaID
	if o.hub == nil {
		// No remote collaborator: the optimistic update is final.
		for _, a := range attempts {
			succeeded = append(succeeded, a.area)
		}
	} else {
		failed, succeeded = o.dispatch(ctx, attempts)
	}

	// Permitted areas proceed regardless, but a denial anywhere outranks
	// everything else in the report.
	if len(denied) > 0 {
		return o.denialMessage(cmd, denied), outcomeDenied
	}
	if len(failed) > 0 {
		return failureMessage(cmd, failed, succeeded), outcomePartial
	}
	if cmd.Say != "" {
		return cmd.Say, outcomeOK
	}
	return successMessage(cmd, succeeded), outcomeOK
}

// dispatch fans the attempts out to the hub concurrently, one goroutine per
// area. A failing area is rolled back to its prior values; sibling areas
// proceed independently.
func (o *Orchestrator) dispatch(ctx context.Context, attempts []attempt) (failed, succeeded []model.AreaID) {
	errs := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			errs[i] = o.dispatchArea(ctx, a)
		}(i, a)
	}
	wg.Wait()

	for i, a := range attempts {
		if errs[i] != nil {
			o.logger.Warn("Device dispatch failed, rolling back", "area", a.area, "error", errs[i])
			a.rollback(o.devices)
			failed = append(failed, a.area)
			continue
		}
		succeeded = append(succeeded, a.area)
	}
	return failed, succeeded
}

// dispatchArea writes one area's devices to the hub. A panic in the hub is
// converted to a per-area error like any other failure.
func (o *Orchestrator) dispatchArea(ctx context.Context, a attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hub panic: %v", r)
		}
	}()
	value := 0
	if a.desired {
		value = 1
	}
	for _, id := range a.ids {
		if err := o.hub.SetDeviceState(ctx, id, value); err != nil {
			return fmt.Errorf("set device %s: %w", id, err)
		}
	}
	return nil
}

func (o *Orchestrator) targetAreas(room string) []model.AreaID {
	if room == model.RoomAll {
		return model.Areas()
	}
	if area, err := model.AreaFromString(room); err == nil {
		return []model.AreaID{area}
	}
	return []model.AreaID{model.AreaMainHall}
}

// doorSet drives one door to the desired state. With a hub configured the
// hub is the authority: read first, skip the write when already satisfied,
// verify the acknowledged state after the write.
func (o *Orchestrator) doorSet(ctx context.Context, actor *model.Member, doorID model.AreaID, wantLocked bool) (string, string) {
	unlocking := !wantLocked

	if !o.policy.CanDoorAction(actor, doorID, unlocking) {
		res := o.doors.Deny(actor, doorID, unlocking)
		return res.Error, outcomeDenied
	}

	if o.hub == nil {
		current, ok := o.doors.Locked(doorID)
		if !ok {
			return "Unknown door", outcomeError
		}
		if current == wantLocked {
			return alreadyMessage(doorID, wantLocked), outcomeOK
		}
		res := o.doors.Toggle(actor, doorID)
		if !res.Success {
			return res.Error, outcomeError
		}
		return doorMessage(doorID, wantLocked), outcomeOK
	}

	snapshot, err := o.hubDoors(ctx)
	if err != nil {
		o.logger.Warn("Failed to read hub door snapshot", "error", err)
		return "I couldn't reach the door controller.", outcomeError
	}
	if current, ok := snapshot[doorID]; ok && current == wantLocked {
		// Already satisfied remotely; fold it into local state quietly.
		o.doors.SetState(doorID, wantLocked, doorlock.Options{SkipLog: true})
		return alreadyMessage(doorID, wantLocked), outcomeOK
	}

	reported, err := o.hubToggle(ctx, doorID)
	if err != nil {
		o.logger.Warn("Hub door toggle failed", "door", doorID, "error", err)
		return "I couldn't reach the door controller.", outcomeError
	}
	if reported != wantLocked {
		// The hub acknowledged a different state than requested. Trust its
		// report locally, but tell the user the action is unconfirmed.
		o.doors.SetState(doorID, reported, doorlock.Options{SkipLog: true})
		return unconfirmedMessage(doorID, wantLocked), outcomeUnconfirmed
	}

	// Remote-confirmed: reconcile without re-authorization, with an audit
	// entry crediting the acting member and a listener notification.
	o.doors.SetState(doorID, wantLocked, doorlock.Options{Actor: actorID(actor)})
	return doorMessage(doorID, wantLocked), outcomeOK
}

func (o *Orchestrator) doorAll(ctx context.Context, actor *model.Member, lock bool) (string, string) {
	allowed := o.policy.Can(actor, model.ControlDoors)
	if allowed && !lock {
		allowed = o.policy.Can(actor, model.ControlUnlockDoors)
	}
	if !allowed {
		// Delegate so the denial lands in the audit trail.
		var res doorlock.Result
		if lock {
			res = o.doors.LockAll(actor)
		} else {
			res = o.doors.UnlockAll(actor)
		}
		return res.Error, outcomeDenied
	}

	if o.hub != nil {
		var err error
		if lock {
			err = o.hubLockAll(ctx)
		} else {
			err = o.hubUnlockAll(ctx)
		}
		if err != nil {
			o.logger.Warn("Hub whole-house door action failed", "lock", lock, "error", err)
			return "I couldn't reach the door controller.", outcomeError
		}
	}

	var res doorlock.Result
	if lock {
		res = o.doors.LockAll(actor)
	} else {
		res = o.doors.UnlockAll(actor)
	}
	if !res.Success {
		return res.Error, outcomeDenied
	}
	if lock {
		return "All doors are locked.", outcomeOK
	}
	return "All doors are unlocked.", outcomeOK
}

// hub wrappers convert panics into errors so a misbehaving collaborator can
// never take the orchestrator down.

func (o *Orchestrator) hubDoors(ctx context.Context) (snap model.DoorSnapshot, err error) {
	defer recoverToError(&err)
	return o.hub.GetDoors(ctx)
}

func (o *Orchestrator) hubToggle(ctx context.Context, id model.AreaID) (locked bool, err error) {
	defer recoverToError(&err)
	return o.hub.ToggleDoor(ctx, id)
}

func (o *Orchestrator) hubLockAll(ctx context.Context) (err error) {
	defer recoverToError(&err)
	return o.hub.LockAllDoors(ctx)
}

func (o *Orchestrator) hubUnlockAll(ctx context.Context) (err error) {
	defer recoverToError(&err)
	return o.hub.UnlockAllDoors(ctx)
}

func recoverToError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("hub panic: %v", r)
	}
}

func (o *Orchestrator) denialMessage(cmd model.Command, denied []model.AreaID) string {
	if cmd.Room == model.RoomAll && len(denied) < len(model.Areas()) {
		return fmt.Sprintf("You don't have permission to control the %s in %s.",
			cmd.Device.DisplayName(), joinAreas(denied))
	}
	if len(denied) == 1 {
		return fmt.Sprintf("You don't have permission to control the %s in the %s.",
			cmd.Device.DisplayName(), denied[0].DisplayName())
	}
	return fmt.Sprintf("You don't have permission to control the %s in %s.",
		cmd.Device.DisplayName(), joinAreas(denied))
}

func failureMessage(cmd model.Command, failed, succeeded []model.AreaID) string {
	verb := onOff(cmd.On)
	if len(succeeded) == 0 {
		return fmt.Sprintf("I couldn't turn %s the %s in %s.",
			verb, cmd.Device.DisplayName(), joinAreas(failed))
	}
	return fmt.Sprintf("Turned %s the %s in %s, but %s didn't respond.",
		verb, cmd.Device.DisplayName(), joinAreas(succeeded), joinAreas(failed))
}

func successMessage(cmd model.Command, succeeded []model.AreaID) string {
	verb := onOff(cmd.On)
	if cmd.Room == model.RoomAll {
		return fmt.Sprintf("Turned %s all %ss.", verb, cmd.Device.DisplayName())
	}
	if len(succeeded) == 0 {
		return fmt.Sprintf("There is no %s there.", cmd.Device.DisplayName())
	}
	return fmt.Sprintf("Turned %s the %s in the %s.",
		verb, cmd.Device.DisplayName(), succeeded[0].DisplayName())
}

func doorMessage(doorID model.AreaID, locked bool) string {
	if locked {
		return fmt.Sprintf("Locked the %s door.", doorID.DisplayName())
	}
	return fmt.Sprintf("Unlocked the %s door.", doorID.DisplayName())
}

func alreadyMessage(doorID model.AreaID, locked bool) string {
	state := "unlocked"
	if locked {
		state = "locked"
	}
	return fmt.Sprintf("The %s door is already %s.", doorID.DisplayName(), state)
}

func unconfirmedMessage(doorID model.AreaID, wantLocked bool) string {
	action := "unlocked"
	if wantLocked {
		action = "locked"
	}
	return fmt.Sprintf("The %s door could not be confirmed %s.", doorID.DisplayName(), action)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func joinAreas(areas []model.AreaID) string {
	names := make([]string, len(areas))
	for i, a := range areas {
		names[i] = "the " + a.DisplayName()
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
