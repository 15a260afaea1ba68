package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSequence struct {
	next int64
	err  error
}

func (s *stubSequence) Next(context.Context, string, int) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func fixtures() (*memoryRepo.Receipts, *memoryRepo.Directory, *memoryRepo.Ledger, *models.Payment, []models.PaymentAllocation) {
	receipts := memoryRepo.NewReceipts()
	dir := memoryRepo.NewDirectory()
	dir.PutStudent(models.Student{ID: "stu-1", SchoolID: "sch-1", AdmissionNo: "A-100", FirstName: "Amina", LastName: "Otieno"})
	dir.PutStaff(models.Staff{ID: "staff-1", SchoolID: "sch-1", Name: "Bursar", IsActive: true})
	ledger := memoryRepo.NewLedger(true)
	ledger.PutObligation(models.FeeObligation{ID: "fee-1", SchoolID: "sch-1", StudentID: "stu-1", Title: "Tuition", BaseAmount: 1000})

	payment := &models.Payment{
		ID:          "pay-1",
		SchoolID:    "sch-1",
		SchoolCode:  "stm",
		StudentID:   "stu-1",
		Amount:      400,
		PaymentMode: models.PaymentModeCash,
		CollectedBy: "staff-1",
		PaidAt:      time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	allocations := []models.PaymentAllocation{{ID: "a-1", PaymentID: "pay-1", StudentFeeID: "fee-1", AllocatedAmount: 400}}
	return receipts, dir, ledger, payment, allocations
}

func TestFormatNumbers(t *testing.T) {
	assert.Equal(t, "STM/REC/2024/000042", FormatNumber("stm", 2024, 42))
	assert.Equal(t, "STM/REC/2024/1234567", FormatNumber("STM", 2024, 1234567))
	at := time.UnixMilli(1710410400123)
	assert.Equal(t, "STM/REC/2024/1710410400123", FallbackNumber("stm", 2024, at))
}

func TestIssueBuildsSnapshot(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	issuer := NewIssuer(receipts, &stubSequence{}, dir, ledger, nil)

	rec, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	assert.Equal(t, "STM/REC/2024/000001", rec.ReceiptNo)
	assert.False(t, rec.Degraded)
	assert.Equal(t, "Amina Otieno", rec.Snapshot.Student.Name)
	assert.Equal(t, "Bursar", rec.Snapshot.Collector.Name)
	require.Len(t, rec.Snapshot.Allocations, 1)
	assert.Equal(t, "Tuition", rec.Snapshot.Allocations[0].Title)
	assert.Equal(t, 400.0, rec.Snapshot.Payment.Amount)
}

func TestIssueIsIdempotent(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	seq := &stubSequence{}
	issuer := NewIssuer(receipts, seq, dir, ledger, nil)

	first, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), seq.next)
	assert.Equal(t, 1, receipts.Count())
}

func TestIssueFallsBackWhenSequenceFails(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	issuer := NewIssuer(receipts, &stubSequence{err: errors.New("redis down")}, dir, ledger, nil)

	rec, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	assert.True(t, rec.Degraded)
	assert.Regexp(t, `^STM/REC/2024/\d{13}$`, rec.ReceiptNo)
}

func TestIssueRenumbersTakenNumber(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	receipts.ReserveNumber("STM/REC/2024/000001")
	issuer := NewIssuer(receipts, &stubSequence{}, dir, ledger, nil)

	rec, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	assert.True(t, rec.Degraded)
	assert.NotEqual(t, "STM/REC/2024/000001", rec.ReceiptNo)
}

func TestIssueRequiresStudent(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	payment.StudentID = "stu-404"
	issuer := NewIssuer(receipts, &stubSequence{}, dir, ledger, nil)

	_, err := issuer.Issue(context.Background(), payment, allocations)
	assert.Error(t, err)
	assert.Equal(t, 0, receipts.Count())
}

func TestIssueWithoutCollectorName(t *testing.T) {
	receipts, dir, ledger, payment, allocations := fixtures()
	payment.CollectedBy = "staff-404"
	issuer := NewIssuer(receipts, &stubSequence{}, dir, ledger, nil)

	rec, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	assert.Equal(t, "staff-404", rec.Snapshot.Collector.ID)
	assert.Empty(t, rec.Snapshot.Collector.Name)
}

func TestIssueWithRedisSequence(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("receipt_seq:sch-1:2024", "41"))

	receipts, dir, ledger, payment, allocations := fixtures()
	issuer := NewIssuer(receipts, NewRedisSequence(client, time.Second), dir, ledger, nil)

	rec, err := issuer.Issue(context.Background(), payment, allocations)
	require.NoError(t, err)
	assert.Equal(t, "STM/REC/2024/000042", rec.ReceiptNo)
}
