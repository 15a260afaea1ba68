// Package memoryRepo holds in-memory repositories with failure injection, used to
// exercise the services without MongoDB.
package memoryRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schoolfees/database"
	"schoolfees/models"
	"schoolfees/utils"
)

// Ledger is an in-memory LedgerRepository. With Transactions set, WithTransaction
// serialises callers and restores the previous state when fn fails.
type Ledger struct {
	Transactions bool

	// Failure injection. Set before use.
	FailInsertPayment     error
	FailInsertAllocations error
	FailIncrement         map[string]error
	FailDecrement         error
	FailDeletePayment     error
	FailMarkCommitted     error

	// OnInsertAllocations runs before allocations are stored, outside the lock.
	// A non-nil error fails the insert.
	OnInsertAllocations func(paymentID string) error

	mu          sync.Mutex
	txMu        sync.Mutex
	fees        map[string]models.FeeObligation
	payments    map[string]models.Payment
	allocations map[string][]models.PaymentAllocation
}

func NewLedger(transactions bool) *Ledger {
	return &Ledger{
		Transactions:  transactions,
		FailIncrement: make(map[string]error),
		fees:          make(map[string]models.FeeObligation),
		payments:      make(map[string]models.Payment),
		allocations:   make(map[string][]models.PaymentAllocation),
	}
}

// PutObligation seeds or replaces an obligation.
func (l *Ledger) PutObligation(fee models.FeeObligation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fee.Status == "" {
		fee.Status = feeStatus(fee)
	}
	l.fees[fee.ID] = fee
}

// Obligation returns the current state of an obligation.
func (l *Ledger) Obligation(id string) (models.FeeObligation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fee, ok := l.fees[id]
	return fee, ok
}

// PaymentCount returns how many payments are stored.
func (l *Ledger) PaymentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payments)
}

// AllocationCount returns how many allocation rows are stored.
func (l *Ledger) AllocationCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, a := range l.allocations {
		n += len(a)
	}
	return n
}

func (l *Ledger) GetObligations(_ context.Context, schoolID, studentID string, ids []string) ([]models.FeeObligation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.FeeObligation
	for _, id := range ids {
		if fee, ok := l.fees[id]; ok && fee.SchoolID == schoolID && fee.StudentID == studentID {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (l *Ledger) ListObligationsByStudent(_ context.Context, schoolID, studentID string) ([]models.FeeObligation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.FeeObligation
	for _, fee := range l.fees {
		if fee.SchoolID == schoolID && fee.StudentID == studentID {
			out = append(out, fee)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (l *Ledger) IncrementPaid(_ context.Context, feeID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.FailIncrement[feeID]; err != nil {
		return err
	}
	fee, ok := l.fees[feeID]
	if !ok {
		return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrNotFound)
	}
	if utils.Exceeds(utils.Sum(fee.PaidAmount, amount), utils.Sum(fee.BaseAmount, fee.AdjustmentAmount)) {
		return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrBalanceConflict)
	}
	l.applyPaid(fee, utils.Round2(utils.Sum(fee.PaidAmount, amount)))
	return nil
}

func (l *Ledger) DecrementPaid(_ context.Context, feeID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailDecrement != nil {
		return l.FailDecrement
	}
	fee, ok := l.fees[feeID]
	if !ok {
		return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrNotFound)
	}
	paid := utils.Sum(fee.PaidAmount, -amount)
	if paid.IsNegative() {
		if !utils.ApproxEqual(paid, utils.Money(0)) {
			return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrBalanceConflict)
		}
		paid = utils.Money(0)
	}
	l.applyPaid(fee, utils.Round2(paid))
	return nil
}

func (l *Ledger) applyPaid(fee models.FeeObligation, paid float64) {
	fee.PaidAmount = paid
	fee.Version++
	fee.Status = feeStatus(fee)
	fee.UpdatedAt = time.Now()
	l.fees[fee.ID] = fee
}

func feeStatus(fee models.FeeObligation) string {
	owed := utils.Sum(fee.BaseAmount, fee.AdjustmentAmount)
	paid := utils.Money(fee.PaidAmount)
	switch {
	case !utils.Exceeds(owed, paid):
		return models.FeeStatusPaid
	case !utils.Exceeds(paid, utils.Money(0)):
		return models.FeeStatusPending
	default:
		return models.FeeStatusPartial
	}
}

func (l *Ledger) InsertPayment(_ context.Context, payment *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailInsertPayment != nil {
		return l.FailInsertPayment
	}
	for _, p := range l.payments {
		if p.SchoolID == payment.SchoolID && p.IdempotencyKey == payment.IdempotencyKey {
			return fmt.Errorf("payment: %w", database.ErrDuplicate)
		}
	}
	l.payments[payment.ID] = *payment
	return nil
}

func (l *Ledger) DeletePayment(_ context.Context, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailDeletePayment != nil {
		return l.FailDeletePayment
	}
	if _, ok := l.payments[paymentID]; !ok {
		return fmt.Errorf("payment %s: %w", paymentID, database.ErrNotFound)
	}
	delete(l.payments, paymentID)
	return nil
}

func (l *Ledger) MarkPaymentCommitted(_ context.Context, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailMarkCommitted != nil {
		return l.FailMarkCommitted
	}
	p, ok := l.payments[paymentID]
	if !ok || p.Status != models.PaymentStatusRecording {
		return fmt.Errorf("recording payment %s: %w", paymentID, database.ErrNotFound)
	}
	p.Status = models.PaymentStatusCommitted
	l.payments[paymentID] = p
	return nil
}

func (l *Ledger) GetPayment(_ context.Context, paymentID string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, database.ErrNotFound)
	}
	return &p, nil
}

func (l *Ledger) FindPaymentByIdempotencyKey(_ context.Context, schoolID, key string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.SchoolID == schoolID && p.IdempotencyKey == key {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("payment with idempotency key: %w", database.ErrNotFound)
}

func (l *Ledger) ListPaymentsByStudent(_ context.Context, schoolID, studentID string) ([]models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Payment
	for _, p := range l.payments {
		if p.SchoolID == schoolID && p.StudentID == studentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

func (l *Ledger) InsertAllocations(_ context.Context, allocations []models.PaymentAllocation) error {
	if hook := l.OnInsertAllocations; hook != nil && len(allocations) > 0 {
		if err := hook(allocations[0].PaymentID); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailInsertAllocations != nil {
		return l.FailInsertAllocations
	}
	for _, a := range allocations {
		l.allocations[a.PaymentID] = append(l.allocations[a.PaymentID], a)
	}
	return nil
}

func (l *Ledger) DeleteAllocations(_ context.Context, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.allocations, paymentID)
	return nil
}

func (l *Ledger) ListAllocationsByPayment(_ context.Context, paymentID string) ([]models.PaymentAllocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.PaymentAllocation(nil), l.allocations[paymentID]...), nil
}

func (l *Ledger) ListAllocationsByPayments(_ context.Context, paymentIDs []string) (map[string][]models.PaymentAllocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]models.PaymentAllocation, len(paymentIDs))
	for _, id := range paymentIDs {
		if a, ok := l.allocations[id]; ok {
			out[id] = append([]models.PaymentAllocation(nil), a...)
		}
	}
	return out, nil
}

func (l *Ledger) SupportsTransactions() bool {
	return l.Transactions
}

func (l *Ledger) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !l.Transactions {
		return fn(ctx)
	}
	l.txMu.Lock()
	defer l.txMu.Unlock()

	snap := l.snapshot()
	if err := fn(ctx); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

type ledgerState struct {
	fees        map[string]models.FeeObligation
	payments    map[string]models.Payment
	allocations map[string][]models.PaymentAllocation
}

func (l *Ledger) snapshot() ledgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := ledgerState{
		fees:        make(map[string]models.FeeObligation, len(l.fees)),
		payments:    make(map[string]models.Payment, len(l.payments)),
		allocations: make(map[string][]models.PaymentAllocation, len(l.allocations)),
	}
	for k, v := range l.fees {
		s.fees[k] = v
	}
	for k, v := range l.payments {
		s.payments[k] = v
	}
	for k, v := range l.allocations {
		s.allocations[k] = append([]models.PaymentAllocation(nil), v...)
	}
	return s
}

func (l *Ledger) restore(s ledgerState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fees = s.fees
	l.payments = s.payments
	l.allocations = s.allocations
}
