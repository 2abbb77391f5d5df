package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

// Mock InventoryStore
type mockInventory struct {
	mu        sync.Mutex
	resources map[string]*domain.Resource
	holds     map[string]map[string]bool

	reserveErr   error
	releaseErrs  []error // consumed one per Release call
	releaseBlock bool    // block Release until ctx is done
	confirmErr   error
	releases     int
	confirms     int
}

func newMockInventory(resources ...domain.Resource) *mockInventory {
	m := &mockInventory{
		resources: make(map[string]*domain.Resource),
		holds:     make(map[string]map[string]bool),
	}
	for _, r := range resources {
		m.resources[r.ID] = &r
		m.holds[r.ID] = make(map[string]bool)
	}
	return m
}

func (m *mockInventory) Reserve(ctx context.Context, resourceID, reservationID string) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserveErr != nil {
		return domain.Reservation{}, m.reserveErr
	}
	r, ok := m.resources[resourceID]
	if !ok || !r.Active || r.AvailableUnits <= 0 {
		return domain.Reservation{}, port.ErrUnavailable
	}
	r.AvailableUnits--
	m.holds[resourceID][reservationID] = true
	return domain.Reservation{ID: reservationID, ResourceID: resourceID, DisplayName: r.DisplayName}, nil
}

func (m *mockInventory) Release(ctx context.Context, resourceID, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releases++
	if m.releaseBlock {
		m.mu.Unlock()
		<-ctx.Done()
		m.mu.Lock()
		return ctx.Err()
	}
	if len(m.releaseErrs) > 0 {
		err := m.releaseErrs[0]
		m.releaseErrs = m.releaseErrs[1:]
		if err != nil {
			return err
		}
	}
	if !m.holds[resourceID][reservationID] {
		return nil
	}
	r, ok := m.resources[resourceID]
	if !ok || !r.Active {
		return port.ErrResourceNotFound
	}
	if r.AvailableUnits >= r.TotalUnits {
		return port.ErrOverRelease
	}
	delete(m.holds[resourceID], reservationID)
	r.AvailableUnits++
	return nil
}

func (m *mockInventory) Confirm(ctx context.Context, resourceID, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirms++
	if m.confirmErr != nil {
		return m.confirmErr
	}
	delete(m.holds[resourceID], reservationID)
	return nil
}

func (m *mockInventory) available(resourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resources[resourceID].AvailableUnits
}

func (m *mockInventory) setActive(resourceID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resourceID].Active = active
}

func (m *mockInventory) holdCount(resourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holds[resourceID])
}

func (m *mockInventory) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// Mock BookingLedger
type mockTx struct {
	ledger     *mockLedger
	pending    []domain.Booking
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *mockTx) Commit() error {
	if tx.committed || tx.rolledBack {
		return errors.New("tx done")
	}
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	tx.ledger.mu.Lock()
	tx.ledger.rows = append(tx.ledger.rows, tx.pending...)
	tx.ledger.mu.Unlock()
	return nil
}

func (tx *mockTx) Rollback() error {
	if tx.committed || tx.rolledBack {
		return errors.New("tx done")
	}
	tx.rolledBack = true
	tx.pending = nil
	return nil
}

type mockLedger struct {
	mu    sync.Mutex
	rows  []domain.Booking
	txs   []*mockTx
	calls int

	// failOn makes the n-th InsertBooking call (1-based) fail.
	failOn    map[int]bool
	insertErr error
	commitErr error
	beginErr  error
	block     bool // block InsertBooking until ctx is done
	listErr   error
}

func newMockLedger() *mockLedger {
	return &mockLedger{failOn: make(map[int]bool)}
}

func (m *mockLedger) BeginTx(ctx context.Context) (port.LedgerTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	tx := &mockTx{ledger: m, commitErr: m.commitErr}
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *mockLedger) InsertBooking(ctx context.Context, tx port.LedgerTx, draft domain.BookingDraft) (domain.Booking, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	fail := m.failOn[n] || m.insertErr != nil
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Booking{}, ctx.Err()
	}
	if fail {
		return domain.Booking{}, fmt.Errorf("duplicate entry for call %d", n)
	}

	mtx := tx.(*mockTx)
	b := domain.Booking{
		ID:                  fmt.Sprintf("booking-%d", n),
		AccountID:           draft.AccountID,
		ResourceID:          draft.ResourceID,
		ResourceDisplayName: draft.ResourceDisplayName,
		CreatedAt:           time.Now(),
	}
	mtx.pending = append(mtx.pending, b)
	return b, nil
}

func (m *mockLedger) ListByAccount(ctx context.Context, accountID int64) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Booking
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].AccountID == accountID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *mockLedger) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Mock IdentityLookup
type mockAccounts struct {
	accounts map[string]domain.Account
	err      error
}

func newMockAccounts(accounts ...domain.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[string]domain.Account)}
	for _, a := range accounts {
		m.accounts[a.UUID] = a
	}
	return m
}

func (m *mockAccounts) FindActiveAccount(ctx context.Context, identity string) (*domain.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[identity]
	if !ok || !a.Active {
		return nil, nil
	}
	return &a, nil
}

// Mock Escalator
type mockEscalator struct {
	mu        sync.Mutex
	incidents []domain.CompensationIncident
	err       error
}

func (m *mockEscalator) Escalate(ctx context.Context, incident domain.CompensationIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, incident)
	return m.err
}

func (m *mockEscalator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incidents)
}
