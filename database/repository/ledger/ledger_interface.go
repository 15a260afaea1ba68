package ledgerRepo

import (
	"context"

	"schoolfees/models"
)

// LedgerRepository covers fee obligations, payments and their allocations.
type LedgerRepository interface {
	// GetObligations loads the given obligations of a student. Unknown ids are simply absent.
	GetObligations(ctx context.Context, schoolID, studentID string, ids []string) ([]models.FeeObligation, error)
	// ListObligationsByStudent returns every obligation of a student, by due date.
	ListObligationsByStudent(ctx context.Context, schoolID, studentID string) ([]models.FeeObligation, error)
	// IncrementPaid adds amount to an obligation's paid amount only if the result stays
	// within base + adjustment (± epsilon). Returns database.ErrBalanceConflict otherwise.
	IncrementPaid(ctx context.Context, feeID string, amount float64) error
	// DecrementPaid undoes a previous IncrementPaid.
	DecrementPaid(ctx context.Context, feeID string, amount float64) error

	InsertPayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, paymentID string) error
	MarkPaymentCommitted(ctx context.Context, paymentID string) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	FindPaymentByIdempotencyKey(ctx context.Context, schoolID, key string) (*models.Payment, error)
	ListPaymentsByStudent(ctx context.Context, schoolID, studentID string) ([]models.Payment, error)

	InsertAllocations(ctx context.Context, allocations []models.PaymentAllocation) error
	DeleteAllocations(ctx context.Context, paymentID string) error
	ListAllocationsByPayment(ctx context.Context, paymentID string) ([]models.PaymentAllocation, error)
	ListAllocationsByPayments(ctx context.Context, paymentIDs []string) (map[string][]models.PaymentAllocation, error)

	// SupportsTransactions reports whether WithTransaction gives all-or-nothing semantics.
	SupportsTransactions() bool
	// WithTransaction runs fn inside one multi-document transaction. The ctx passed to
	// fn carries the session and must be used for every write that belongs to it.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
