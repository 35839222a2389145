package member_test

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeflow/internal/member"
	"homeflow/internal/model"
	"homeflow/internal/policy"
	"homeflow/internal/storage"
)

func newRegistry(t *testing.T) *member.Registry {
	t.Helper()
	return member.NewRegistry(slog.Default(), storage.NewMemory())
}

func TestRegister_SeedsDefaultPolicy(t *testing.T) {
	r := newRegistry(t)

	m, err := r.Register("Dana", "dana@example.com", "secret123", model.RoleMember)
	require.NoError(t, err)
	assert.Len(t, m.Policy.Areas, len(model.Areas()))
	assert.True(t, m.Policy.Controls.Devices)
	assert.False(t, m.Policy.Controls.UnlockDoors, "members cannot unlock by default")

	_, err = r.Register("Dupe", "dana@example.com", "other", model.RoleMember)
	assert.ErrorIs(t, err, member.ErrEmailTaken)
}

func TestLogin_VerifiesCredentials(t *testing.T) {
	r := newRegistry(t)
	registered, err := r.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	_, err = r.Login("owner@example.com", "wrong")
	assert.ErrorIs(t, err, member.ErrInvalidCredentials)

	m, err := r.Login("Owner@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, m.ID)
}

func TestGet_UnknownMember(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Get(uuid.New())
	assert.ErrorIs(t, err, member.ErrMemberNotFound)
}

func TestUpdatePolicy_MergesAndNormalizes(t *testing.T) {
	r := newRegistry(t)
	m, err := r.Register("Kid", "kid@example.com", "pw123456", model.RoleMember)
	require.NoError(t, err)

	off := false
	updated, err := r.UpdatePolicy(m.ID, policy.Patch{
		Areas: map[model.AreaID]policy.AreaPatch{
			model.AreaKitchen: {Light: &off},
		},
	})
	require.NoError(t, err)

	kitchen := updated.Policy.Areas[model.AreaKitchen]
	assert.False(t, kitchen.Light)
	assert.True(t, kitchen.Fan, "unmentioned permissions survive the update")
	assert.Len(t, updated.Policy.Areas, len(model.Areas()))
}

func TestGet_ReturnsIndependentCopy(t *testing.T) {
	r := newRegistry(t)
	registered, err := r.Register("Kid", "kid@example.com", "pw123456", model.RoleMember)
	require.NoError(t, err)

	held, err := r.Get(registered.ID)
	require.NoError(t, err)
	require.True(t, held.Policy.Areas[model.AreaKitchen].Light)

	off := false
	_, err = r.UpdatePolicy(registered.ID, policy.Patch{
		Areas: map[model.AreaID]policy.AreaPatch{
			model.AreaKitchen: {Light: &off},
		},
	})
	require.NoError(t, err)

	// The earlier copy is unaffected by the update.
	assert.True(t, held.Policy.Areas[model.AreaKitchen].Light)

	// Mutating a copy never reaches the registry.
	held.Policy.Controls.UnlockDoors = true
	fresh, err := r.Get(registered.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Policy.Controls.UnlockDoors)
}

func TestPolicyReads_SafeDuringUpdates(t *testing.T) {
	r := newRegistry(t)
	registered, err := r.Register("Kid", "kid@example.com", "pw123456", model.RoleMember)
	require.NoError(t, err)

	engine := policy.NewEngine()
	on, off := true, false

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m, err := r.Get(registered.ID)
			if err != nil {
				return
			}
			engine.CanDevice(m, model.AreaKitchen, model.DeviceTypeLight)
			engine.CanDoorAction(m, model.AreaKitchen, true)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			light := &on
			if i%2 == 0 {
				light = &off
			}
			_, _ = r.UpdatePolicy(registered.ID, policy.Patch{
				Areas: map[model.AreaID]policy.AreaPatch{
					model.AreaKitchen: {Light: light},
				},
			})
		}
	}()
	wg.Wait()
}

func TestRegistry_PersistsAcrossRestart(t *testing.T) {
	store := storage.NewMemory()
	logger := slog.Default()

	r := member.NewRegistry(logger, store)
	m, err := r.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	restarted := member.NewRegistry(logger, store)
	restored, err := restarted.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", restored.Email)
	assert.Len(t, restored.Policy.Areas, len(model.Areas()))

	// Credentials survive the restart.
	_, err = restarted.Login("owner@example.com", "hunter22")
	assert.NoError(t, err)
}

func TestRemove_DeletesMember(t *testing.T) {
	r := newRegistry(t)
	m, err := r.Register("Owner", "owner@example.com", "hunter22", model.RoleOwner)
	require.NoError(t, err)

	require.NoError(t, r.Remove(m.ID))
	_, err = r.Get(m.ID)
	assert.ErrorIs(t, err, member.ErrMemberNotFound)
}
