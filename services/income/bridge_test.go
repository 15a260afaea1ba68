package income

import (
	"context"
	"errors"
	"testing"
	"time"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*memoryRepo.Income, *memoryRepo.Directory, *models.Payment, *models.Receipt) {
	dir := memoryRepo.NewDirectory()
	dir.PutStudent(models.Student{ID: "stu-1", SchoolID: "sch-1", AdmissionNo: "A-100"})
	dir.PutFinancialYear(models.FinancialYear{
		ID: "fy-2024", SchoolID: "sch-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
	})
	payment := &models.Payment{
		ID:          "3f2a9c1e-77aa-4b3c-9d10-aa11bb22cc33",
		SchoolID:    "sch-1",
		StudentID:   "stu-1",
		Amount:      1500,
		CollectedBy: "staff-1",
		Remarks:     "term 1",
		PaidAt:      time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	receipt := &models.Receipt{ID: "rec-1", ReceiptNo: "STM/REC/2024/000001"}
	return memoryRepo.NewIncome(), dir, payment, receipt
}

func TestReferenceFor(t *testing.T) {
	assert.Equal(t, "MPESA123", ReferenceFor(&models.Payment{ID: "abc", ReferenceNo: " MPESA123 "}))
	assert.Equal(t, "PAY-3F2A9C1E", ReferenceFor(&models.Payment{ID: "3f2a9c1e-77aa-4b3c"}))
	assert.Equal(t, "PAY-AB", ReferenceFor(&models.Payment{ID: "ab"}))
}

func TestNarrative(t *testing.T) {
	assert.Equal(t, "Fee payment - Adm A-100", Narrative("A-100", "", ""))
	assert.Equal(t, "Fee payment - Adm A-100 - Receipt R1", Narrative("A-100", "R1", " "))
	assert.Equal(t, "Fee payment - Adm A-100 - Receipt R1 - term 1", Narrative("A-100", "R1", "term 1"))
	assert.Equal(t, "Fee payment - Adm A-100 - term 1", Narrative("A-100", "", "term 1"))
	assert.Equal(t, "Fee payment - Receipt R1", Narrative("", "R1", ""))
}

func TestBookViaFunction(t *testing.T) {
	entries, dir, payment, receipt := setup()
	bridge := NewBridge(entries, dir, ModeFunction, nil)

	entry, err := bridge.Book(context.Background(), payment, receipt)
	require.NoError(t, err)
	assert.Equal(t, models.IncomeSourceFees, entry.Source)
	assert.Equal(t, 1500.0, entry.Amount)
	assert.Equal(t, "PAY-3F2A9C1E", entry.ReferenceNo)
	assert.Equal(t, "Fee payment - Adm A-100 - Receipt STM/REC/2024/000001 - term 1", entry.Narrative)
	assert.Equal(t, "staff-1", entry.RecordedBy)
	assert.Equal(t, 1, entries.FunctionHits)
	assert.Equal(t, 0, entries.DirectHits)
}

func TestBookFallsBackToDirectInsert(t *testing.T) {
	entries, dir, payment, receipt := setup()
	entries.FunctionUnavailable = true
	bridge := NewBridge(entries, dir, ModeFunction, nil)

	entry, err := bridge.Book(context.Background(), payment, receipt)
	require.NoError(t, err)
	assert.Equal(t, "fy-2024", entry.FinancialYearID)
	assert.Equal(t, 1, entries.DirectHits)
}

func TestBookTwiceYieldsOneEntry(t *testing.T) {
	for _, mode := range []string{ModeFunction, ModeDirect} {
		t.Run(mode, func(t *testing.T) {
			entries, dir, payment, receipt := setup()
			bridge := NewBridge(entries, dir, mode, nil)

			first, err := bridge.Book(context.Background(), payment, receipt)
			require.NoError(t, err)
			second, err := bridge.Book(context.Background(), payment, nil)
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, 1, entries.Count())
		})
	}
}

func TestBookWithoutFinancialYear(t *testing.T) {
	entries, dir, payment, receipt := setup()
	payment.PaidAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	bridge := NewBridge(entries, dir, ModeDirect, nil)

	entry, err := bridge.Book(context.Background(), payment, receipt)
	require.NoError(t, err)
	assert.Empty(t, entry.FinancialYearID)
}

func TestBookDirectFailure(t *testing.T) {
	entries, dir, payment, receipt := setup()
	entries.FailInsert = errors.New("write refused")
	bridge := NewBridge(entries, dir, ModeDirect, nil)

	_, err := bridge.Book(context.Background(), payment, receipt)
	assert.ErrorContains(t, err, "write refused")
	assert.Equal(t, 0, entries.Count())
}

func TestBookWithoutStudentRecord(t *testing.T) {
	entries, dir, payment, receipt := setup()
	payment.StudentID = "stu-404"
	bridge := NewBridge(entries, dir, ModeFunction, nil)

	entry, err := bridge.Book(context.Background(), payment, receipt)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, entry.PaymentID)
	assert.Equal(t, "Fee payment - Receipt STM/REC/2024/000001 - term 1", entry.Narrative)
	assert.Equal(t, 1, entries.FunctionHits)
}
