package models

import "time"

// IncomeSourceFees is the source recorded for fee collections.
const IncomeSourceFees = "Fees"

// IncomeEntry books a payment as revenue. At most one exists per payment.
type IncomeEntry struct {
	ID              string    `bson:"id" json:"id"`
	SchoolID        string    `bson:"school_id" json:"school_id"`
	PaymentID       string    `bson:"payment_id" json:"payment_id"`
	FinancialYearID string    `bson:"financial_year_id,omitempty" json:"financial_year_id,omitempty"`
	Source          string    `bson:"source" json:"source"`
	Amount          float64   `bson:"amount" json:"amount"`
	Date            time.Time `bson:"date" json:"date"`
	ReferenceNo     string    `bson:"reference_no" json:"reference_no"`
	Narrative       string    `bson:"narrative" json:"narrative"`
	RecordedBy      string    `bson:"recorded_by" json:"recorded_by"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// FinancialYear is a school's accounting period.
type FinancialYear struct {
	ID        string    `bson:"id" json:"id"`
	SchoolID  string    `bson:"school_id" json:"school_id"`
	Name      string    `bson:"name" json:"name"`
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
}
