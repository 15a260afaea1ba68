package memoryRepo

import (
	"context"
	"fmt"
	"sync"

	"schoolfees/database"
	incomeRepo "schoolfees/database/repository/income"
	"schoolfees/models"
)

// Receipts is an in-memory ReceiptRepository.
type Receipts struct {
	FailInsert error

	mu        sync.Mutex
	byPayment map[string]models.Receipt
	numbers   map[string]bool
}

func NewReceipts() *Receipts {
	return &Receipts{byPayment: make(map[string]models.Receipt), numbers: make(map[string]bool)}
}

func (r *Receipts) Insert(_ context.Context, receipt *models.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return r.FailInsert
	}
	if _, ok := r.byPayment[receipt.PaymentID]; ok || r.numbers[receipt.ReceiptNo] {
		return fmt.Errorf("receipt: %w", database.ErrDuplicate)
	}
	r.byPayment[receipt.PaymentID] = *receipt
	r.numbers[receipt.ReceiptNo] = true
	return nil
}

// ReserveNumber marks a receipt number as taken.
func (r *Receipts) ReserveNumber(no string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numbers[no] = true
}

func (r *Receipts) GetByPaymentID(_ context.Context, paymentID string) (*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byPayment[paymentID]
	if !ok {
		return nil, fmt.Errorf("receipt for payment %s: %w", paymentID, database.ErrNotFound)
	}
	return &rec, nil
}

func (r *Receipts) ListByPaymentIDs(_ context.Context, paymentIDs []string) (map[string]*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.Receipt, len(paymentIDs))
	for _, id := range paymentIDs {
		if rec, ok := r.byPayment[id]; ok {
			rec := rec
			out[id] = &rec
		}
	}
	return out, nil
}

func (r *Receipts) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPayment)
}

// Income is an in-memory IncomeRepository. FunctionUnavailable makes the preferred
// booking path report itself unavailable.
type Income struct {
	FunctionUnavailable bool
	FailInsert          error

	mu           sync.Mutex
	byPayment    map[string]models.IncomeEntry
	FunctionHits int
	DirectHits   int
}

func NewIncome() *Income {
	return &Income{byPayment: make(map[string]models.IncomeEntry)}
}

func (r *Income) BookFromPayment(_ context.Context, entry *models.IncomeEntry) (*models.IncomeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FunctionUnavailable {
		return nil, incomeRepo.ErrIncomeFunctionUnavailable
	}
	r.FunctionHits++
	if existing, ok := r.byPayment[entry.PaymentID]; ok {
		return &existing, nil
	}
	r.byPayment[entry.PaymentID] = *entry
	booked := *entry
	return &booked, nil
}

func (r *Income) Insert(_ context.Context, entry *models.IncomeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return r.FailInsert
	}
	r.DirectHits++
	if _, ok := r.byPayment[entry.PaymentID]; ok {
		return fmt.Errorf("income entry: %w", database.ErrDuplicate)
	}
	r.byPayment[entry.PaymentID] = *entry
	return nil
}

func (r *Income) FindByPaymentID(_ context.Context, paymentID string) (*models.IncomeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byPayment[paymentID]
	if !ok {
		return nil, fmt.Errorf("income entry for payment %s: %w", paymentID, database.ErrNotFound)
	}
	return &e, nil
}

func (r *Income) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPayment)
}

// Audit is an in-memory AuditRepository.
type Audit struct {
	FailAppend error

	mu      sync.Mutex
	entries []models.AuditLogEntry
	keys    map[string]bool
}

func NewAudit() *Audit {
	return &Audit{keys: make(map[string]bool)}
}

func (r *Audit) Append(_ context.Context, entry *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppend != nil {
		return r.FailAppend
	}
	if entry.DedupeKey != "" && r.keys[entry.DedupeKey] {
		return fmt.Errorf("audit entry: %w", database.ErrDuplicate)
	}
	r.keys[entry.DedupeKey] = true
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *Audit) Entries() []models.AuditLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLogEntry(nil), r.entries...)
}
