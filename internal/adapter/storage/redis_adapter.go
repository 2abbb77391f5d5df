package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

const inventoryKeyPrefix = "inventory:"

// Keys of one resource share a hash tag so scripts stay on one cluster slot.
func resourceKey(resourceID string) string {
	return inventoryKeyPrefix + "{" + resourceID + "}"
}

func holdsKey(resourceID string) string {
	return resourceKey(resourceID) + ":holds"
}

var reserveScript = redis.NewScript(`
local key = KEYS[1]
local holds = KEYS[2]
local reservation = ARGV[1]

local fields = redis.call('HMGET', key, 'active', 'available', 'name')
if not fields[1] or fields[1] ~= '1' then
	return {0, ''}
end

local available = tonumber(fields[2])
if not available or available <= 0 then
	return {0, ''}
end

redis.call('HINCRBY', key, 'available', -1)
redis.call('SADD', holds, reservation)
return {1, fields[3] or ''}
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
local holds = KEYS[2]
local reservation = ARGV[1]

if redis.call('SISMEMBER', holds, reservation) == 0 then
	return 1
end

local fields = redis.call('HMGET', key, 'active', 'available', 'total')
if not fields[1] or fields[1] ~= '1' then
	return -1
end

if tonumber(fields[2]) >= tonumber(fields[3]) then
	return -2
end

redis.call('SREM', holds, reservation)
redis.call('HINCRBY', key, 'available', 1)
return 1
`)

var provisionScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
	return 0
end
redis.call('HSET', key, 'name', ARGV[1], 'total', ARGV[2], 'available', ARGV[3], 'active', ARGV[4])
return 1
`)

var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'active', ARGV[1])
return 1
`)

// RedisAdapter keeps per-resource counters in Redis. Every mutation is a Lua
// script, so the precondition check and the counter update cannot interleave
// with another caller.
type RedisAdapter struct {
	client redis.UniversalClient
}

func NewRedisAdapter(client redis.UniversalClient) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Reserve(ctx context.Context, resourceID, reservationID string) (domain.Reservation, error) {
	keys := []string{resourceKey(resourceID), holdsKey(resourceID)}

	result, err := reserveScript.Run(ctx, r.client, keys, reservationID).Slice()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("run reserve script: %w", err)
	}
	if len(result) != 2 {
		return domain.Reservation{}, fmt.Errorf("unexpected reserve reply: %v", result)
	}

	code, ok := result[0].(int64)
	if !ok {
		return domain.Reservation{}, fmt.Errorf("unexpected reserve code type: %T", result[0])
	}
	if code == 0 {
		return domain.Reservation{}, port.ErrUnavailable
	}

	name, _ := result[1].(string)
	return domain.Reservation{ID: reservationID, ResourceID: resourceID, DisplayName: name}, nil
}

func (r *RedisAdapter) Release(ctx context.Context, resourceID, reservationID string) error {
	keys := []string{resourceKey(resourceID), holdsKey(resourceID)}

	code, err := releaseScript.Run(ctx, r.client, keys, reservationID).Int()
	if err != nil {
		return fmt.Errorf("run release script: %w", err)
	}

	switch code {
	case 1:
		return nil
	case -1:
		return port.ErrResourceNotFound
	case -2:
		return port.ErrOverRelease
	default:
		return fmt.Errorf("unknown result code from release script: %d", code)
	}
}

func (r *RedisAdapter) Confirm(ctx context.Context, resourceID, reservationID string) error {
	return r.client.SRem(ctx, holdsKey(resourceID), reservationID).Err()
}

func (r *RedisAdapter) Provision(ctx context.Context, res domain.Resource) (bool, error) {
	if err := res.Validate(); err != nil {
		return false, err
	}

	active := "0"
	if res.Active {
		active = "1"
	}
	created, err := provisionScript.Run(ctx, r.client, []string{resourceKey(res.ID)},
		res.DisplayName, res.TotalUnits, res.AvailableUnits, active).Int()
	if err != nil {
		return false, fmt.Errorf("run provision script: %w", err)
	}
	return created == 1, nil
}

func (r *RedisAdapter) SetActive(ctx context.Context, resourceID string, active bool) error {
	flag := "0"
	if active {
		flag = "1"
	}
	found, err := setActiveScript.Run(ctx, r.client, []string{resourceKey(resourceID)}, flag).Int()
	if err != nil {
		return fmt.Errorf("run set active script: %w", err)
	}
	if found == 0 {
		return port.ErrResourceNotFound
	}
	return nil
}

func (r *RedisAdapter) Get(ctx context.Context, resourceID string) (*domain.Resource, error) {
	fields, err := r.client.HGetAll(ctx, resourceKey(resourceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read resource: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	total, err := strconv.Atoi(fields["total"])
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	available, err := strconv.Atoi(fields["available"])
	if err != nil {
		return nil, fmt.Errorf("parse available: %w", err)
	}

	return &domain.Resource{
		ID:             resourceID,
		DisplayName:    fields["name"],
		TotalUnits:     total,
		AvailableUnits: available,
		Active:         fields["active"] == "1",
	}, nil
}

// Holds returns the number of outstanding reservations for a resource.
func (r *RedisAdapter) Holds(ctx context.Context, resourceID string) (int64, error) {
	n, err := r.client.SCard(ctx, holdsKey(resourceID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return n, nil
}
