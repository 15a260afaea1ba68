package models

import "time"

// Receipt is the numbered, immutable acknowledgement of a payment.
type Receipt struct {
	ID        string          `bson:"id" json:"id"`
	PaymentID string          `bson:"payment_id" json:"payment_id"`
	SchoolID  string          `bson:"school_id" json:"school_id"`
	ReceiptNo string          `bson:"receipt_no" json:"receipt_no"`
	Degraded  bool            `bson:"degraded" json:"degraded"` // number came from the fallback pattern
	Snapshot  ReceiptSnapshot `bson:"snapshot" json:"snapshot"`
	IssuedAt  time.Time       `bson:"issued_at" json:"issued_at"`
}

// ReceiptSnapshot is the denormalized copy frozen at issue time.
type ReceiptSnapshot struct {
	School      SnapshotSchool       `bson:"school" json:"school"`
	Student     SnapshotStudent      `bson:"student" json:"student"`
	Payment     SnapshotPayment      `bson:"payment" json:"payment"`
	Allocations []SnapshotAllocation `bson:"allocations" json:"allocations"`
	Collector   SnapshotCollector    `bson:"collector" json:"collector"`
}

type SnapshotSchool struct {
	ID   string `bson:"id" json:"id"`
	Code string `bson:"code" json:"code"`
}

type SnapshotStudent struct {
	ID          string `bson:"id" json:"id"`
	AdmissionNo string `bson:"admission_no" json:"admission_no"`
	Name        string `bson:"name" json:"name"`
}

type SnapshotPayment struct {
	ID          string    `bson:"id" json:"id"`
	Amount      float64   `bson:"amount" json:"amount"`
	PaymentMode string    `bson:"payment_mode" json:"payment_mode"`
	ReferenceNo string    `bson:"reference_no,omitempty" json:"reference_no,omitempty"`
	Remarks     string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	PaidAt      time.Time `bson:"paid_at" json:"paid_at"`
}

type SnapshotAllocation struct {
	StudentFeeID    string  `bson:"student_fee_id" json:"student_fee_id"`
	Title           string  `bson:"title,omitempty" json:"title,omitempty"`
	AllocatedAmount float64 `bson:"allocated_amount" json:"allocated_amount"`
}

type SnapshotCollector struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}
