package models

import "time"

// Fee obligation statuses.
const (
	FeeStatusPending = "pending"
	FeeStatusPartial = "partial"
	FeeStatusPaid    = "paid"
)

// FeeObligation is one billable charge for one student. Billing creates it;
// collection only ever moves PaidAmount.
type FeeObligation struct {
	ID               string    `bson:"id" json:"id"`
	SchoolID         string    `bson:"school_id" json:"school_id"`
	StudentID        string    `bson:"student_id" json:"student_id"`
	Title            string    `bson:"title" json:"title"`
	BaseAmount       float64   `bson:"base_amount" json:"base_amount"`
	AdjustmentAmount float64   `bson:"adjustment_amount" json:"adjustment_amount"` // discount (negative) or fine
	PaidAmount       float64   `bson:"paid_amount" json:"paid_amount"`
	DueDate          time.Time `bson:"due_date" json:"due_date"`
	Status           string    `bson:"status" json:"status"`
	Version          int       `bson:"version" json:"version"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// BalanceDue returns base + adjustment - paid.
func (f FeeObligation) BalanceDue() float64 {
	return f.BaseAmount + f.AdjustmentAmount - f.PaidAmount
}

// FeeObligationView is an obligation with its computed balance, for read endpoints.
type FeeObligationView struct {
	FeeObligation
	BalanceDue float64 `json:"balance_due"`
}
