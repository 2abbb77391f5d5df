package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/rl1809/ticket-booking/internal/adapter/storage"
	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/logging"
	"github.com/rl1809/ticket-booking/internal/port"
)

// memLedger commits to memory and fails a fraction of inserts.
type memLedger struct {
	mu       sync.Mutex
	rows     []domain.Booking
	failRate float64
}

type memTx struct {
	ledger  *memLedger
	pending []domain.Booking
}

func (tx *memTx) Commit() error {
	tx.ledger.mu.Lock()
	defer tx.ledger.mu.Unlock()
	tx.ledger.rows = append(tx.ledger.rows, tx.pending...)
	return nil
}

func (tx *memTx) Rollback() error {
	tx.pending = nil
	return nil
}

func (l *memLedger) BeginTx(ctx context.Context) (port.LedgerTx, error) {
	return &memTx{ledger: l}, nil
}

func (l *memLedger) InsertBooking(ctx context.Context, tx port.LedgerTx, draft domain.BookingDraft) (domain.Booking, error) {
	if rand.Float64() < l.failRate {
		return domain.Booking{}, errors.New("simulated ledger failure")
	}
	b := domain.Booking{
		ID:                  uuid.NewString(),
		AccountID:           draft.AccountID,
		ResourceID:          draft.ResourceID,
		ResourceDisplayName: draft.ResourceDisplayName,
		CreatedAt:           time.Now().UTC(),
	}
	mtx := tx.(*memTx)
	mtx.pending = append(mtx.pending, b)
	return b, nil
}

func (l *memLedger) ListByAccount(ctx context.Context, accountID int64) ([]domain.Booking, error) {
	return nil, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type anyAccount struct{}

func (anyAccount) FindActiveAccount(ctx context.Context, identity string) (*domain.Account, error) {
	return &domain.Account{ID: 1, UUID: identity, Active: true}, nil
}

func main() {
	flags := pflag.NewFlagSet("stress_test", pflag.ExitOnError)
	redisAddr := flags.String("redis-addr", "localhost:6379", "Redis address")
	resourceID := flags.String("resource", "stress-event", "resource id to book")
	initialStock := flags.Int("units", 20, "units to provision")
	totalRequests := flags.Int("requests", 50, "concurrent booking attempts")
	failRate := flags.Float64("ledger-fail-rate", 0.1, "fraction of ledger writes that fail")
	flags.Parse(os.Args[1:])

	log := logging.New("stress-test", "warn", true)
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	// Clear previous test data
	rdb.Del(ctx, "inventory:{"+*resourceID+"}", "inventory:{"+*resourceID+"}:holds")

	inventory := storage.NewRedisAdapter(rdb)
	if _, err := inventory.Provision(ctx, domain.Resource{
		ID:             *resourceID,
		DisplayName:    "Stress Event",
		TotalUnits:     *initialStock,
		AvailableUnits: *initialStock,
		Active:         true,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to provision resource")
	}

	ledger := &memLedger{failRate: *failRate}
	saga := service.NewBookingSaga(service.Dependencies{
		Accounts:  anyAccount{},
		Inventory: inventory,
		Ledger:    ledger,
		Logger:    log.Level(zerolog.ErrorLevel),
	}, service.DefaultSagaConfig())

	// Counters
	var successCount, soldOutCount, failedCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := saga.Book(ctx, domain.BookingRequest{
				Identity:   fmt.Sprintf("user-%d", userID),
				ResourceID: *resourceID,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrSoldOut):
				soldOutCount.Add(1)
			default:
				failedCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	res, err := inventory.Get(ctx, *resourceID)
	if err != nil || res == nil {
		log.Fatal().Err(err).Msg("failed to read resource")
	}
	holds, _ := inventory.Holds(ctx, *resourceID)
	committed := ledger.count()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Units:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Booked:           %d\n", successCount.Load())
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Failed:           %d\n", failedCount.Load())
	fmt.Printf("Ledger Rows:      %d\n", committed)
	fmt.Printf("Available:        %d\n", res.AvailableUnits)
	fmt.Printf("Open Holds:       %d\n", holds)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	ok := true
	if res.AvailableUnits+committed != *initialStock {
		fmt.Printf("FAIL: available %d + booked %d != %d\n", res.AvailableUnits, committed, *initialStock)
		ok = false
	}
	if int(successCount.Load()) != committed {
		fmt.Printf("FAIL: %d successes but %d ledger rows\n", successCount.Load(), committed)
		ok = false
	}
	if holds != 0 {
		fmt.Printf("FAIL: %d holds left open\n", holds)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS: no unit lost or oversold")
}
