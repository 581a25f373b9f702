// Package memory provides in-memory repositories for demos and tests. They
// honor the same Scope rules as the GORM implementations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
)

// Invoices is an in-memory repository.InvoiceRepository.
type Invoices struct {
	mu        sync.RWMutex
	nextID    uint
	rows      map[uint]models.Invoice
	guardians map[uint]uint // guardian id -> organization id
	now       func() time.Time
}

var _ repository.InvoiceRepository = (*Invoices)(nil)

func NewInvoices() *Invoices {
	return &Invoices{
		nextID:    1,
		rows:      make(map[uint]models.Invoice),
		guardians: make(map[uint]uint),
		now:       time.Now,
	}
}

// AddGuardian registers a guardian as belonging to an organization.
func (s *Invoices) AddGuardian(guardianID, organizationID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guardians[guardianID] = organizationID
}

// Seed inserts invoices as-is, bypassing scope checks.
func (s *Invoices) Seed(invoices ...models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range invoices {
		if inv.ID == 0 {
			inv.ID = s.nextID
		}
		if inv.ID >= s.nextID {
			s.nextID = inv.ID + 1
		}
		s.rows[inv.ID] = inv
	}
}

func (s *Invoices) List(_ context.Context, scope repository.Scope, f repository.InvoiceFilter) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Invoice
	for _, inv := range s.rows {
		if !scope.Permits(inv.OrganizationID, inv.GuardianID) {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.GuardianID != 0 && inv.GuardianID != f.GuardianID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.After(out[j].DueDate)
		}
		return out[i].ID > out[j].ID
	})

	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		end := f.Offset + f.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (s *Invoices) Get(_ context.Context, scope repository.Scope, id uint) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.rows[id]
	if !ok || !scope.Permits(inv.OrganizationID, inv.GuardianID) {
		return nil, fmt.Errorf("get invoice: %w", repository.ErrNotFound)
	}
	return &inv, nil
}

func (s *Invoices) Create(_ context.Context, scope repository.Scope, inv *models.Invoice) error {
	if !scope.IsTenantAdmin() {
		return fmt.Errorf("create invoice: %w", repository.ErrForbidden)
	}
	tenant, _ := scope.TenantID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if org, ok := s.guardians[inv.GuardianID]; !ok || org != tenant {
		return fmt.Errorf("create invoice: guardian %d: %w", inv.GuardianID, repository.ErrNotFound)
	}
	for _, existing := range s.rows {
		if inv.Number != "" && existing.Number == inv.Number {
			return fmt.Errorf("create invoice: %w", repository.ErrConflict)
		}
	}

	inv.ID = s.nextID
	s.nextID++
	inv.OrganizationID = tenant
	if inv.Status == "" {
		inv.Status = models.InvoiceOpen
	}
	now := s.now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	s.rows[inv.ID] = *inv
	return nil
}

func (s *Invoices) Void(_ context.Context, scope repository.Scope, id uint) error {
	if !scope.IsTenantAdmin() && !scope.All() {
		return fmt.Errorf("void invoice: %w", repository.ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.rows[id]
	if !ok || !scope.Permits(inv.OrganizationID, inv.GuardianID) {
		return fmt.Errorf("void invoice: %w", repository.ErrNotFound)
	}
	if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceVoid {
		return fmt.Errorf("void invoice: %w", repository.ErrConflict)
	}
	inv.Status = models.InvoiceVoid
	inv.UpdatedAt = s.now()
	s.rows[id] = inv
	return nil
}

func (s *Invoices) HoldForCheckout(_ context.Context, scope repository.Scope, id uint, now, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.rows[id]
	if !ok || !scope.Permits(inv.OrganizationID, inv.GuardianID) {
		return fmt.Errorf("hold invoice: %w", repository.ErrNotFound)
	}
	if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceVoid {
		return fmt.Errorf("hold invoice: %w", repository.ErrConflict)
	}
	if inv.CheckoutHoldUntil != nil && inv.CheckoutHoldUntil.After(now) {
		return fmt.Errorf("hold invoice: %w", repository.ErrConflict)
	}
	inv.CheckoutHoldUntil = &until
	s.rows[id] = inv
	return nil
}

func (s *Invoices) ReleaseCheckout(_ context.Context, scope repository.Scope, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.rows[id]
	if !ok || !scope.Permits(inv.OrganizationID, inv.GuardianID) {
		return nil
	}
	inv.CheckoutHoldUntil = nil
	s.rows[id] = inv
	return nil
}
