package assistant_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeflow/internal/assistant"
	"homeflow/internal/device"
	"homeflow/internal/doorlock"
	"homeflow/internal/member"
	"homeflow/internal/model"
	"homeflow/internal/orchestrator"
	"homeflow/internal/policy"
	"homeflow/internal/storage"
)

// staticSource replies with a canned string or error.
type staticSource struct {
	reply string
	err   error
}

func (s staticSource) Reply(context.Context, string) (string, error) { return s.reply, s.err }

type fixture struct {
	members *member.Registry
	owner   *model.Member
	devices *device.Registry
	doors   *doorlock.Subsystem
	engine  *policy.Engine
	orch    *orchestrator.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()

	members := member.NewRegistry(logger, storage.NewMemory())
	owner, err := members.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	engine := policy.NewEngine()
	devices := device.NewRegistry(model.DefaultDevices())
	doors := doorlock.New(logger, engine, storage.NewMemory(), model.Doors())
	orch := orchestrator.New(logger, engine, devices, doors, nil, nil)
	return &fixture{members: members, owner: owner, devices: devices, doors: doors, engine: engine, orch: orch}
}

// actor returns a fresh copy of the owner, reflecting any policy updates.
func (f *fixture) actor(t *testing.T) *model.Member {
	t.Helper()
	m, err := f.members.Get(f.owner.ID)
	require.NoError(t, err)
	return m
}

func newService(t *testing.T, f *fixture, source assistant.TextSource) *assistant.Service {
	t.Helper()
	return assistant.NewService(slog.Default(), source, f.engine, f.orch, nil)
}

func TestHandle_ExecutesDirective(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, staticSource{
		reply: "On it!\nCOMMAND: action=device.set; room=kitchen; device=light; value=on",
	})

	msg, err := s.Handle(context.Background(), f.actor(t), "turn on the kitchen light")
	require.NoError(t, err)
	assert.Equal(t, "On it!", msg)
	assert.True(t, f.devices.State("kitchen-light"))
}

func TestHandle_SynthesizesWhenNoSay(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, staticSource{
		reply: "COMMAND: action=device.set; room=bedroom 2; device=fan; value=on",
	})

	msg, err := s.Handle(context.Background(), f.actor(t), "fan on in the second bedroom")
	require.NoError(t, err)
	assert.Equal(t, "Turned on the fan in the bedroom 2.", msg)
	assert.True(t, f.devices.State("bedroom2-fan"))
}

func TestHandle_ChatOnlyReply(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, staticSource{reply: "The weather looks lovely today."})

	msg, err := s.Handle(context.Background(), f.actor(t), "how is the weather")
	require.NoError(t, err)
	assert.Equal(t, "The weather looks lovely today.", msg)
}

func TestHandle_DenialSurfacesToUser(t *testing.T) {
	f := newFixture(t)
	off := false
	_, err := f.members.UpdatePolicy(f.owner.ID, policy.Patch{
		Areas: map[model.AreaID]policy.AreaPatch{
			model.AreaKitchen: {Light: &off},
		},
	})
	require.NoError(t, err)

	s := newService(t, f, staticSource{
		reply: "COMMAND: action=device.set; room=kitchen; device=light; value=on; say=Done!",
	})

	msg, err := s.Handle(context.Background(), f.actor(t), "kitchen light on")
	require.NoError(t, err)
	assert.Contains(t, msg, "permission")
	assert.False(t, f.devices.State("kitchen-light"))
}

func TestHandle_VoiceControlGate(t *testing.T) {
	f := newFixture(t)
	off := false
	_, err := f.members.UpdatePolicy(f.owner.ID, policy.Patch{
		Controls: policy.ControlsPatch{Voice: &off},
	})
	require.NoError(t, err)

	s := newService(t, f, staticSource{reply: "irrelevant"})
	_, err = s.Handle(context.Background(), f.actor(t), "turn on the light")
	assert.ErrorIs(t, err, assistant.ErrVoiceNotAllowed)
}

func TestHandle_SourceFailure(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, staticSource{err: errors.New("model timeout")})

	_, err := s.Handle(context.Background(), f.actor(t), "hello")
	assert.ErrorIs(t, err, assistant.ErrAssistantOffline)
}

func TestSimulatedSource_EndToEnd(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, assistant.NewSimulatedSource())

	msg, err := s.Handle(context.Background(), f.actor(t), "please turn on the fan in bedroom 2")
	require.NoError(t, err)
	assert.Equal(t, "Turned on the fan in the bedroom 2.", msg)
	assert.True(t, f.devices.State("bedroom2-fan"))

	msg, err = s.Handle(context.Background(), f.actor(t), "unlock the kitchen door")
	require.NoError(t, err)
	assert.Equal(t, "Unlocked the kitchen door.", msg)
	locked, _ := f.doors.Locked(model.AreaKitchen)
	assert.False(t, locked)

	msg, err = s.Handle(context.Background(), f.actor(t), "lock all the doors")
	require.NoError(t, err)
	assert.Equal(t, "All doors are locked.", msg)
	for _, lockedNow := range f.doors.Snapshot() {
		assert.True(t, lockedNow)
	}

	msg, err = s.Handle(context.Background(), f.actor(t), "tell me a story")
	require.NoError(t, err)
	assert.Contains(t, msg, "I can control")
}
