package orchestrator_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"homeflow/internal/device"
	"homeflow/internal/doorlock"
	"homeflow/internal/member"
	"homeflow/internal/model"
	"homeflow/internal/orchestrator"
	"homeflow/internal/policy"
	"homeflow/internal/storage"
)

type house struct {
	members *member.Registry
	owner   *model.Member
	engine  *policy.Engine
	devices *device.Registry
	doors   *doorlock.Subsystem
	hub     *device.SimHub
}

// newHouse wires a full in-memory pipeline with one registered owner.
func newHouse(t *testing.T, withHub bool) (*house, *orchestrator.Orchestrator) {
	t.Helper()
	logger := slog.Default()

	members := member.NewRegistry(logger, storage.NewMemory())
	owner, err := members.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	engine := policy.NewEngine()
	devices := device.NewRegistry(model.DefaultDevices())
	doors := doorlock.New(logger, engine, storage.NewMemory(), model.Doors())

	h := &house{members: members, owner: owner, engine: engine, devices: devices, doors: doors}
	var hub device.Hub
	if withHub {
		h.hub = device.NewSimHub(model.Doors(), model.DefaultDevices())
		hub = h.hub
	}
	o := orchestrator.New(logger, engine, devices, doors, hub, nil)
	return h, o
}

// actor returns a fresh copy of the owner, reflecting any policy updates.
func (h *house) actor(t *testing.T) *model.Member {
	t.Helper()
	m, err := h.members.Get(h.owner.ID)
	require.NoError(t, err)
	return m
}

func (h *house) restrict(t *testing.T, patch policy.Patch) {
	t.Helper()
	_, err := h.members.UpdatePolicy(h.owner.ID, patch)
	require.NoError(t, err)
}

func boolPtr(b bool) *bool { return &b }

func TestExecute_None(t *testing.T) {
	h, o := newHouse(t, false)
	assert.Equal(t, "Hello!", o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionNone, Say: "Hello!"}))
	assert.Equal(t, "Okay.", o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionNone}))
}

func TestDeviceSet_SingleArea_NoHub(t *testing.T) {
	h, o := newHouse(t, false)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
		Device: model.DeviceTypeLight, On: true,
	})

	assert.Equal(t, "Turned on the light in the kitchen.", msg)
	assert.True(t, h.devices.State("kitchen-light"))
}

func TestDeviceSet_SayPreferred(t *testing.T) {
	h, o := newHouse(t, false)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
		Device: model.DeviceTypeLight, On: true, Say: "Kitchen light coming up!",
	})

	assert.Equal(t, "Kitchen light coming up!", msg)
}

func TestDeviceSet_AllAreas_SkipsMissingDevices(t *testing.T) {
	h, o := newHouse(t, false)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: model.RoomAll,
		Device: model.DeviceTypeFan, On: true,
	})

	// The kitchen has no fan; it is skipped silently, not an error.
	assert.Equal(t, "Turned on all fans.", msg)
	assert.True(t, h.devices.State("mainhall-fan"))
	assert.True(t, h.devices.State("bedroom1-fan"))
	assert.True(t, h.devices.State("bedroom2-fan"))
}

func TestDeviceSet_DeniedAreaUntouched(t *testing.T) {
	h, o := newHouse(t, false)
	h.restrict(t, policy.Patch{
		Areas: map[model.AreaID]policy.AreaPatch{
			model.AreaKitchen: {Light: boolPtr(false)},
		},
	})

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
		Device: model.DeviceTypeLight, On: true,
	})

	assert.Contains(t, msg, "permission")
	assert.False(t, h.devices.State("kitchen-light"), "denied area must not change")
}

func TestDeviceSet_DenialOutranksPartialFailure(t *testing.T) {
	h, o := newHouse(t, true)
	h.restrict(t, policy.Patch{
		Areas: map[model.AreaID]policy.AreaPatch{
			model.AreaKitchen: {Light: boolPtr(false)},
		},
	})
	h.hub.FailDevices["bedroom1-light"] = true

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: model.RoomAll,
		Device: model.DeviceTypeLight, On: true,
	})

	assert.Contains(t, msg, "permission")
	assert.Contains(t, msg, "kitchen")
}

func TestDeviceSet_FanOutPartialFailureRollsBack(t *testing.T) {
	h, o := newHouse(t, true)
	h.hub.FailDevices["bedroom1-light"] = true

	msg := o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: model.RoomAll,
		Device: model.DeviceTypeLight, On: true,
	})

	assert.Contains(t, msg, "bedroom 1")
	assert.Contains(t, msg, "didn't respond")

	// Failed area rolled back, siblings kept their new value.
	assert.False(t, h.devices.State("bedroom1-light"))
	assert.True(t, h.devices.State("mainhall-light"))
	assert.True(t, h.devices.State("bedroom2-light"))
	assert.True(t, h.devices.State("kitchen-light"))
	assert.Equal(t, 1, h.hub.Device("kitchen-light"))
}

func TestDeviceSet_NoHub_OptimisticIsFinal(t *testing.T) {
	h, o := newHouse(t, false)

	o.Execute(context.Background(), h.actor(t), model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaBedroom1),
		Device: model.DeviceTypeAC, On: true,
	})
	assert.True(t, h.devices.State("bedroom1-ac"))
}

func TestDoorLock_NoHub(t *testing.T) {
	h, o := newHouse(t, false)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaKitchen})
	assert.Equal(t, "Unlocked the kitchen door.", msg)
	locked, _ := h.doors.Locked(model.AreaKitchen)
	assert.False(t, locked)

	msg = o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaKitchen})
	assert.Equal(t, "The kitchen door is already unlocked.", msg)
}

func TestDoorLock_Denied(t *testing.T) {
	h, o := newHouse(t, false)
	h.restrict(t, policy.Patch{
		Controls: policy.ControlsPatch{UnlockDoors: boolPtr(false)},
	})

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaMainHall})
	assert.Contains(t, msg, "not allowed")

	locked, _ := h.doors.Locked(model.AreaMainHall)
	assert.True(t, locked)

	events := h.doors.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, model.DoorEventDenied, events[len(events)-1].Type)
}

func TestDoorLock_HubAlreadySatisfied(t *testing.T) {
	h, o := newHouse(t, true)
	// Hub already reports the kitchen door unlocked; local state disagrees.
	h.hub.SetDoor(model.AreaKitchen, false)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaKitchen})
	assert.Equal(t, "The kitchen door is already unlocked.", msg)

	// Local state reconciled to the hub's report without a toggle.
	locked, _ := h.doors.Locked(model.AreaKitchen)
	assert.False(t, locked)
}

func TestDoorLock_HubConfirmedToggle(t *testing.T) {
	h, o := newHouse(t, true)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaBedroom2})
	assert.Equal(t, "Unlocked the bedroom 2 door.", msg)

	locked, _ := h.doors.Locked(model.AreaBedroom2)
	assert.False(t, locked)
	snap, err := h.hub.GetDoors(context.Background())
	require.NoError(t, err)
	assert.False(t, snap[model.AreaBedroom2])
}

func TestDoorLock_HubConfirmedToggleCreditsActor(t *testing.T) {
	h, o := newHouse(t, true)
	actor := h.actor(t)

	o.Execute(context.Background(), actor, model.Command{Action: model.ActionUnlock, Door: model.AreaBedroom2})

	events := h.doors.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.DoorEventUnlock, last.Type)
	assert.Equal(t, actor.ID, last.ActorID, "hub-confirmed events carry the acting member")
}

func TestDoorLock_HubFailure(t *testing.T) {
	h, o := newHouse(t, true)
	h.hub.FailDoors[model.AreaKitchen] = true

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlock, Door: model.AreaKitchen})
	assert.Contains(t, msg, "couldn't reach")

	locked, _ := h.doors.Locked(model.AreaKitchen)
	assert.True(t, locked, "no local change on hub failure")
}

func TestDoorAll_Completeness(t *testing.T) {
	h, o := newHouse(t, true)

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlockAll})
	assert.Equal(t, "All doors are unlocked.", msg)
	for id, locked := range h.doors.Snapshot() {
		assert.False(t, locked, "door %s", id)
	}
	snap, err := h.hub.GetDoors(context.Background())
	require.NoError(t, err)
	for id, locked := range snap {
		assert.False(t, locked, "hub door %s", id)
	}

	msg = o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionLockAll})
	assert.Equal(t, "All doors are locked.", msg)
	for id, locked := range h.doors.Snapshot() {
		assert.True(t, locked, "door %s", id)
	}
}

func TestDoorAll_CoarseDenial(t *testing.T) {
	h, o := newHouse(t, false)
	h.restrict(t, policy.Patch{
		Controls: policy.ControlsPatch{UnlockDoors: boolPtr(false)},
	})

	msg := o.Execute(context.Background(), h.actor(t), model.Command{Action: model.ActionUnlockAll})
	assert.Contains(t, msg, "not allowed")
	for id, locked := range h.doors.Snapshot() {
		assert.True(t, locked, "door %s", id)
	}
}

func TestExecute_NilActorDeniedEverything(t *testing.T) {
	h, o := newHouse(t, false)

	msg := o.Execute(context.Background(), nil, model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
		Device: model.DeviceTypeLight, On: true,
	})
	assert.Contains(t, msg, "permission")
	assert.False(t, h.devices.State("kitchen-light"))

	msg = o.Execute(context.Background(), nil, model.Command{Action: model.ActionLock, Door: model.AreaKitchen})
	assert.Contains(t, msg, "not allowed")
}

type fakeRecorder struct {
	mu      sync.Mutex
	actions []model.Action
	outcome string
}

func (f *fakeRecorder) RecordCommand(_ context.Context, action model.Action, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.outcome = outcome
}

func (f *fakeRecorder) Tracer() oteltrace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func TestExecute_RecordsMetricsAndSpans(t *testing.T) {
	logger := slog.Default()
	members := member.NewRegistry(logger, storage.NewMemory())
	owner, err := members.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	engine := policy.NewEngine()
	devices := device.NewRegistry(model.DefaultDevices())
	doors := doorlock.New(logger, engine, storage.NewMemory(), model.Doors())
	rec := &fakeRecorder{}
	o := orchestrator.New(logger, engine, devices, doors, nil, rec)

	msg := o.Execute(context.Background(), owner, model.Command{
		Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
		Device: model.DeviceTypeLight, On: true,
	})
	assert.Equal(t, "Turned on the light in the kitchen.", msg)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.actions, 1)
	assert.Equal(t, model.ActionDeviceSet, rec.actions[0])
	assert.Equal(t, "ok", rec.outcome)
}

type panickyHub struct{ device.Hub }

func (panickyHub) GetDoors(context.Context) (model.DoorSnapshot, error) { panic("boom") }
func (panickyHub) SetDeviceState(context.Context, string, int) error    { panic("boom") }

func TestExecute_HubPanicIsContained(t *testing.T) {
	logger := slog.Default()
	members := member.NewRegistry(logger, storage.NewMemory())
	owner, err := members.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	engine := policy.NewEngine()
	devices := device.NewRegistry(model.DefaultDevices())
	doors := doorlock.New(logger, engine, storage.NewMemory(), model.Doors())
	o := orchestrator.New(logger, engine, devices, doors, panickyHub{}, nil)

	assert.NotPanics(t, func() {
		msg := o.Execute(context.Background(), owner, model.Command{Action: model.ActionLock, Door: model.AreaKitchen})
		assert.Contains(t, msg, "couldn't reach")
	})
	assert.NotPanics(t, func() {
		msg := o.Execute(context.Background(), owner, model.Command{
			Action: model.ActionDeviceSet, Room: string(model.AreaKitchen),
			Device: model.DeviceTypeLight, On: true,
		})
		assert.Contains(t, msg, "couldn't turn on")
	})
}
