package models

import "time"

// Common payment modes. The mode is free text; these are the values the counter
// screens offer.
const (
	PaymentModeCash         = "cash"
	PaymentModeCard         = "card"
	PaymentModeBankTransfer = "bank_transfer"
	PaymentModeMobileMoney  = "mobile_money"
	PaymentModeCheque       = "cheque"
)

// Payment states. A payment written without a transaction stays recording until
// every obligation increment has landed.
const (
	PaymentStatusRecording = "recording"
	PaymentStatusCommitted = "committed"
)

// Payment is one collection event. It is immutable once written; IsReversed is
// persisted for schema compatibility and is never set.
type Payment struct {
	ID             string    `bson:"id" json:"id"`
	SchoolID       string    `bson:"school_id" json:"school_id"`
	SchoolCode     string    `bson:"school_code" json:"school_code"`
	StudentID      string    `bson:"student_id" json:"student_id"`
	Amount         float64   `bson:"amount" json:"amount"`
	PaymentMode    string    `bson:"payment_mode" json:"payment_mode"`
	ReferenceNo    string    `bson:"reference_no,omitempty" json:"reference_no,omitempty"`
	Remarks        string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	CollectedBy    string    `bson:"collected_by" json:"collected_by"`
	IdempotencyKey string    `bson:"idempotency_key" json:"idempotency_key"`
	IsReversed     bool      `bson:"is_reversed" json:"is_reversed"`
	Status         string    `bson:"status,omitempty" json:"status,omitempty"`
	PaidAt         time.Time `bson:"paid_at" json:"paid_at"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// Recording reports whether the payment is still being written. Rows without a
// status predate the field and are committed.
func (p *Payment) Recording() bool {
	return p.Status == PaymentStatusRecording
}

// PaymentAllocation links one payment to one fee obligation.
type PaymentAllocation struct {
	ID              string    `bson:"id" json:"id"`
	PaymentID       string    `bson:"payment_id" json:"payment_id"`
	StudentFeeID    string    `bson:"student_fee_id" json:"student_fee_id"`
	AllocatedAmount float64   `bson:"allocated_amount" json:"allocated_amount"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// AllocationInput is one (obligation, amount) pair of a collection request.
type AllocationInput struct {
	StudentFeeID    string  `json:"student_fee_id"`
	AllocatedAmount float64 `json:"allocated_amount"`
}

// CollectionRequest is the body of a fee collection call.
type CollectionRequest struct {
	SchoolCode     string            `json:"school_code"`
	StudentID      string            `json:"student_id"`
	Amount         float64           `json:"amount"`
	PaymentMode    string            `json:"payment_mode"`
	ReferenceNo    string            `json:"reference_no,omitempty"`
	Allocations    []AllocationInput `json:"allocations"`
	Remarks        string            `json:"remarks,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`

	// CallerIdentity is the authenticated subject; it never comes from the body.
	CallerIdentity string `json:"-"`
}

// CollectionResult is returned for a committed (or replayed) collection.
type CollectionResult struct {
	Payment       *Payment            `json:"payment"`
	Receipt       *Receipt            `json:"receipt"`
	Allocations   []PaymentAllocation `json:"allocations"`
	IncomeEntryID *string             `json:"income_entry_id"`
	Replayed      bool                `json:"replayed,omitempty"`
}

// StudentPayment is a payment together with its allocations, as listed for a student.
type StudentPayment struct {
	Payment     Payment             `json:"payment"`
	Allocations []PaymentAllocation `json:"allocations"`
	Receipt     *Receipt            `json:"receipt"`
}
