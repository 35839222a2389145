package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"homeflow/internal/model"
)

// ErrHubDown is returned when the hub cannot serve a request.
var ErrHubDown = errors.New("device hub unavailable")

const (
	redisDoorKeyPrefix   = "hub:door:"
	redisDeviceKeyPrefix = "hub:device:"
)

// RedisHub keeps hub-side device and door state in Redis. It stands in for a
// real cloud device backend: shared across processes, and any call may fail.
type RedisHub struct {
	client *redis.Client
	doors  []model.AreaID
}

func NewRedisHub(client *redis.Client, doors []model.AreaID) *RedisHub {
	return &RedisHub{client: client, doors: append([]model.AreaID(nil), doors...)}
}

func (h *RedisHub) GetDoors(ctx context.Context) (model.DoorSnapshot, error) {
	snapshot := make(model.DoorSnapshot, len(h.doors))
	for _, id := range h.doors {
		value, err := h.client.Get(ctx, redisDoorKeyPrefix+string(id)).Result()
		if errors.Is(err, redis.Nil) {
			// Unset doors default to locked, matching the local subsystem.
			snapshot[id] = true
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get door %s: %w", id, err)
		}
		snapshot[id] = value == "locked"
	}
	return snapshot, nil
}

func (h *RedisHub) ToggleDoor(ctx context.Context, id model.AreaID) (bool, error) {
	snapshot, err := h.GetDoors(ctx)
	if err != nil {
		return false, err
	}
	locked, ok := snapshot[id]
	if !ok {
		return false, fmt.Errorf("toggle door %s: %w", id, model.ErrUnknownDoor)
	}
	next := !locked
	if err := h.setDoor(ctx, id, next); err != nil {
		return false, err
	}
	return next, nil
}

func (h *RedisHub) LockAllDoors(ctx context.Context) error {
	for _, id := range h.doors {
		if err := h.setDoor(ctx, id, true); err != nil {
			return err
		}
	}
	return nil
}

func (h *RedisHub) UnlockAllDoors(ctx context.Context) error {
	for _, id := range h.doors {
		if err := h.setDoor(ctx, id, false); err != nil {
			return err
		}
	}
	return nil
}

func (h *RedisHub) setDoor(ctx context.Context, id model.AreaID, locked bool) error {
	value := "unlocked"
	if locked {
		value = "locked"
	}
	if err := h.client.Set(ctx, redisDoorKeyPrefix+string(id), value, 0).Err(); err != nil {
		return fmt.Errorf("set door %s: %w", id, err)
	}
	return nil
}

func (h *RedisHub) SetDeviceState(ctx context.Context, id string, value int) error {
	if err := h.client.Set(ctx, redisDeviceKeyPrefix+id, value, 0).Err(); err != nil {
		return fmt.Errorf("set device %s: %w", id, err)
	}
	return nil
}

func (h *RedisHub) GetDeviceStates(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		value, err := h.client.Get(ctx, redisDeviceKeyPrefix+id).Result()
		if errors.Is(err, redis.Nil) {
			out[id] = 0
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get device %s: %w", id, err)
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("device %s has corrupt state %q", id, value)
		}
		out[id] = parsed
	}
	return out, nil
}
