package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func setupResource(t *testing.T, client *redis.Client, adapter *RedisAdapter, id string, available, total int) {
	t.Helper()
	ctx := context.Background()
	client.Del(ctx, resourceKey(id), holdsKey(id))

	created, err := adapter.Provision(ctx, domain.Resource{
		ID:             id,
		DisplayName:    "Test Event " + id,
		TotalUnits:     total,
		AvailableUnits: available,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if !created {
		t.Fatal("expected resource to be created")
	}
	t.Cleanup(func() { client.Del(context.Background(), resourceKey(id), holdsKey(id)) })
}

func TestReserve_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "test-event", 10, 10)

	res, err := adapter.Reserve(ctx, "test-event", "res-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != "res-1" || res.DisplayName != "Test Event test-event" {
		t.Errorf("unexpected reservation: %+v", res)
	}

	inv, _ := adapter.Get(ctx, "test-event")
	if inv.AvailableUnits != 9 {
		t.Errorf("expected available 9, got %d", inv.AvailableUnits)
	}
	holds, _ := adapter.Holds(ctx, "test-event")
	if holds != 1 {
		t.Errorf("expected 1 hold, got %d", holds)
	}
}

func TestReserve_SoldOut(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "sold-out-event", 0, 5)

	_, err := adapter.Reserve(ctx, "sold-out-event", "res-1")
	if !errors.Is(err, port.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got: %v", err)
	}

	inv, _ := adapter.Get(ctx, "sold-out-event")
	if inv.AvailableUnits != 0 {
		t.Errorf("expected available 0, got %d", inv.AvailableUnits)
	}
}

func TestReserve_Inactive(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "inactive-event", 5, 5)

	if err := adapter.SetActive(ctx, "inactive-event", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	_, err := adapter.Reserve(ctx, "inactive-event", "res-1")
	if !errors.Is(err, port.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got: %v", err)
	}
}

func TestReserve_KeyNotExists(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, resourceKey("nonexistent"))

	_, err := adapter.Reserve(ctx, "nonexistent", "res-1")
	if !errors.Is(err, port.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for nonexistent key, got: %v", err)
	}
}

func TestReserve_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	initialStock := 20
	totalRequests := 50
	setupResource(t, client, adapter, "concurrent-test", initialStock, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := adapter.Reserve(ctx, "concurrent-test", fmt.Sprintf("res-%d", id))
			if errors.Is(err, port.ErrUnavailable) {
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			successCount.Add(1)
		}(i)
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	inv, _ := adapter.Get(ctx, "concurrent-test")
	if inv.AvailableUnits != 0 {
		t.Errorf("expected available 0, got %d", inv.AvailableUnits)
	}
}

func TestRelease_RestoresOnce(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "release-event", 5, 5)

	if _, err := adapter.Reserve(ctx, "release-event", "res-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := adapter.Release(ctx, "release-event", "res-1"); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}

	inv, _ := adapter.Get(ctx, "release-event")
	if inv.AvailableUnits != 5 {
		t.Errorf("expected available 5, got %d", inv.AvailableUnits)
	}
}

func TestRelease_UnknownHoldIsNoop(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "noop-event", 3, 5)

	if err := adapter.Release(ctx, "noop-event", "never-reserved"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, _ := adapter.Get(ctx, "noop-event")
	if inv.AvailableUnits != 3 {
		t.Errorf("expected available 3, got %d", inv.AvailableUnits)
	}
}

func TestRelease_DeactivatedResource(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "gone-event", 2, 2)

	if _, err := adapter.Reserve(ctx, "gone-event", "res-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := adapter.SetActive(ctx, "gone-event", false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	err := adapter.Release(ctx, "gone-event", "res-1")
	if !errors.Is(err, port.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got: %v", err)
	}
}

func TestRelease_NeverExceedsTotal(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "full-event", 2, 2)

	// A stray hold on a full resource
	client.SAdd(ctx, holdsKey("full-event"), "stray")

	err := adapter.Release(ctx, "full-event", "stray")
	if !errors.Is(err, port.ErrOverRelease) {
		t.Errorf("expected ErrOverRelease, got: %v", err)
	}
	inv, _ := adapter.Get(ctx, "full-event")
	if inv.AvailableUnits != 2 {
		t.Errorf("expected available 2, got %d", inv.AvailableUnits)
	}
}

func TestConfirm_DropsHold(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "confirm-event", 2, 2)

	if _, err := adapter.Reserve(ctx, "confirm-event", "res-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := adapter.Confirm(ctx, "confirm-event", "res-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// A release after confirmation must not give the unit back
	if err := adapter.Release(ctx, "confirm-event", "res-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	inv, _ := adapter.Get(ctx, "confirm-event")
	if inv.AvailableUnits != 1 {
		t.Errorf("expected available 1, got %d", inv.AvailableUnits)
	}
}

func TestProvision_DoesNotReset(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	setupResource(t, client, adapter, "seeded-event", 10, 10)

	if _, err := adapter.Reserve(ctx, "seeded-event", "res-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	created, err := adapter.Provision(ctx, domain.Resource{ID: "seeded-event", TotalUnits: 10, AvailableUnits: 10, Active: true})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if created {
		t.Error("expected existing resource to be kept")
	}

	inv, _ := adapter.Get(ctx, "seeded-event")
	if inv.AvailableUnits != 9 {
		t.Errorf("expected available 9, got %d", inv.AvailableUnits)
	}
}

func TestProvision_Invalid(t *testing.T) {
	adapter := NewRedisAdapter(nil)

	_, err := adapter.Provision(context.Background(), domain.Resource{ID: "bad", TotalUnits: 1, AvailableUnits: 2})
	if !errors.Is(err, domain.ErrInvalidResource) {
		t.Errorf("expected ErrInvalidResource, got: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	adapter := NewRedisAdapter(client)
	client.Del(context.Background(), resourceKey("missing"))

	inv, err := adapter.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv != nil {
		t.Error("expected nil for nonexistent resource")
	}
}
